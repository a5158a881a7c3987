package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type fakeDirectory struct {
	members []GuildMember
	err     error
}

func (d *fakeDirectory) ListMembers(_ context.Context, _ string) ([]GuildMember, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.members, nil
}

func (d *fakeDirectory) GetMember(_ context.Context, _ string, memberID string) (GuildMember, error) {
	for _, m := range d.members {
		if m.ID == memberID {
			return m, nil
		}
	}
	return GuildMember{}, ErrGuildMemberNotFound
}

type roleCall struct {
	Op       string
	MemberID string
	Role     string
}

// fakeRoles keeps guild roles by name and records every mutation.
type fakeRoles struct {
	mu        sync.Mutex
	byName    map[string]RoleRef
	creates   int
	calls     []roleCall
	failFor   map[string]bool
	createErr error
}

func newFakeRoles(existing ...RoleRef) *fakeRoles {
	r := &fakeRoles{byName: make(map[string]RoleRef), failFor: make(map[string]bool)}
	for _, role := range existing {
		r.byName[role.Name] = role
	}
	return r
}

func (r *fakeRoles) GetOrCreateRole(_ context.Context, _ string, name string, _ int, _ bool) (RoleRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.byName[name]; ok {
		return role, nil
	}
	if r.createErr != nil {
		return RoleRef{}, r.createErr
	}
	r.creates++
	role := RoleRef{ID: fmt.Sprintf("role-%d", len(r.byName)+1), Name: name}
	r.byName[name] = role
	return role, nil
}

func (r *fakeRoles) AddRole(_ context.Context, _ string, memberID string, role RoleRef, _ string) error {
	return r.record("add", memberID, role)
}

func (r *fakeRoles) RemoveRole(_ context.Context, _ string, memberID string, role RoleRef, _ string) error {
	return r.record("remove", memberID, role)
}

func (r *fakeRoles) record(op, memberID string, role RoleRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[memberID] {
		return errors.New("discord: missing permissions")
	}
	r.calls = append(r.calls, roleCall{Op: op, MemberID: memberID, Role: role.Name})
	return nil
}

// Calls returns recorded mutations sorted by member, then op, then role.
func (r *fakeRoles) Calls() []roleCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]roleCall(nil), r.calls...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberID != out[j].MemberID {
			return out[i].MemberID < out[j].MemberID
		}
		if out[i].Op != out[j].Op {
			return out[i].Op < out[j].Op
		}
		return out[i].Role < out[j].Role
	})
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []string
	failOn map[string]bool
}

func (n *fakeNotifier) Notify(_ context.Context, memberID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[memberID] {
		return errors.New("cannot send messages to this user")
	}
	n.sent = append(n.sent, memberID)
	return nil
}

type fakeRankClient struct {
	payloads map[string]string
	errs     map[string]error
	delay    time.Duration
}

func (c *fakeRankClient) FetchRank(ctx context.Context, puuid string) ([]byte, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := c.errs[puuid]; ok {
		return nil, err
	}
	p, ok := c.payloads[puuid]
	if !ok {
		return nil, ErrNoRankData
	}
	return []byte(p), nil
}

type fakeRiotAuth struct {
	exchangeErr error
	puuid       string
	exchanged   []string
}

func (a *fakeRiotAuth) AuthCodeURL(state string) string {
	return "https://auth.example.test/authorize?state=" + state
}

func (a *fakeRiotAuth) Exchange(_ context.Context, code string) (RiotTokens, error) {
	if a.exchangeErr != nil {
		return RiotTokens{}, a.exchangeErr
	}
	a.exchanged = append(a.exchanged, code)
	return RiotTokens{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (a *fakeRiotAuth) FetchPUUID(_ context.Context, _ string) (string, error) {
	return a.puuid, nil
}
