package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"
)

// RoleDiff is the set of role mutations that moves one member to its
// desired state.
type RoleDiff struct {
	Add    []RoleRef
	Remove []RoleRef
}

func (d RoleDiff) Empty() bool { return len(d.Add) == 0 && len(d.Remove) == 0 }

// Merge appends other's mutations so one member's changes from several role
// families are applied in a single pass.
func (d RoleDiff) Merge(other RoleDiff) RoleDiff {
	return RoleDiff{
		Add:    append(append([]RoleRef(nil), d.Add...), other.Add...),
		Remove: append(append([]RoleRef(nil), d.Remove...), other.Remove...),
	}
}

// DiffRoles computes the mutations for one role family. Held roles matching
// inFamily are removed unless they are target; target is added when not held.
// A nil target means the member should hold no role of the family.
func DiffRoles(held []RoleRef, inFamily func(RoleRef) bool, target *RoleRef) RoleDiff {
	var diff RoleDiff
	holdsTarget := false
	for _, r := range held {
		if target != nil && r.ID == target.ID {
			holdsTarget = true
			continue
		}
		if inFamily(r) {
			diff.Remove = append(diff.Remove, r)
		}
	}
	if target != nil && !holdsTarget {
		diff.Add = append(diff.Add, *target)
	}
	return diff
}

// RoleIs matches exactly one role by id.
func RoleIs(role RoleRef) func(RoleRef) bool {
	return func(r RoleRef) bool { return r.ID == role.ID }
}

// DiffResult counts what applyDiff did for one member.
type DiffResult struct {
	Added   int
	Removed int
	Err     error
}

// applyDiff issues removals then additions, sequentially. A failed mutation
// does not stop the rest; failures are joined into Err.
func applyDiff(ctx context.Context, roles RoleGateway, guildID, memberID string, diff RoleDiff, reason string) DiffResult {
	var res DiffResult
	var errs []error
	for _, r := range diff.Remove {
		if err := roles.RemoveRole(ctx, guildID, memberID, r, reason); err != nil {
			errs = append(errs, fmt.Errorf("remove role %s: %w", r.Name, err))
			continue
		}
		res.Removed++
	}
	for _, r := range diff.Add {
		if err := roles.AddRole(ctx, guildID, memberID, r, reason); err != nil {
			errs = append(errs, fmt.Errorf("add role %s: %w", r.Name, err))
			continue
		}
		res.Added++
	}
	res.Err = errors.Join(errs...)
	return res
}

// roleResolver gets or creates roles by name for one batch pass. Concurrent
// lookups of the same name share one gateway call and results are kept for
// the rest of the pass.
type roleResolver struct {
	roles RoleGateway
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]RoleRef
}

func newRoleResolver(roles RoleGateway) *roleResolver {
	return &roleResolver{roles: roles, cache: make(map[string]RoleRef)}
}

func (r *roleResolver) Resolve(ctx context.Context, guildID, name string, color int, hoist bool) (RoleRef, error) {
	key := guildID + "/" + name

	r.mu.Lock()
	ref, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return ref, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		ref, err := r.roles.GetOrCreateRole(ctx, guildID, name, color, hoist)
		if err != nil {
			return RoleRef{}, err
		}
		r.mu.Lock()
		r.cache[key] = ref
		r.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		return RoleRef{}, err
	}
	return v.(RoleRef), nil
}

// fanOut runs fn for every item on a bounded ants pool and waits for all of
// them. Items whose submission fails are run inline.
func fanOut[T any](workers int, items []T, fn func(T)) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(min(workers, len(items)))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(item)
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return nil
}
