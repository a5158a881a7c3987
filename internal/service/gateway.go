package service

import (
	"context"
	"errors"
)

// RoleRef identifies a guild role.
type RoleRef struct {
	ID   string
	Name string
}

// GuildMember is a snapshot of one member and the roles they hold.
type GuildMember struct {
	ID    string
	Name  string
	Bot   bool
	Roles []RoleRef
}

// HasRole reports whether the member currently holds role, matched by id.
func (m GuildMember) HasRole(role RoleRef) bool {
	for _, r := range m.Roles {
		if r.ID == role.ID {
			return true
		}
	}
	return false
}

// ErrGuildMemberNotFound is returned by GuildDirectory.GetMember.
var ErrGuildMemberNotFound = errors.New("guild member not found")

// GuildDirectory reads guild membership from the chat platform.
type GuildDirectory interface {
	ListMembers(ctx context.Context, guildID string) ([]GuildMember, error)
	GetMember(ctx context.Context, guildID, memberID string) (GuildMember, error)
}

// RoleGateway mutates guild roles on the chat platform.
type RoleGateway interface {
	GetOrCreateRole(ctx context.Context, guildID, name string, color int, hoist bool) (RoleRef, error)
	AddRole(ctx context.Context, guildID, memberID string, role RoleRef, reason string) error
	RemoveRole(ctx context.Context, guildID, memberID string, role RoleRef, reason string) error
}

// Notifier delivers a direct message to one member.
type Notifier interface {
	Notify(ctx context.Context, memberID, text string) error
}

// ErrNoRankData is returned by RankClient when the account has no rank.
var ErrNoRankData = errors.New("no rank data")

// RankClient fetches the raw rank payload for a Riot account.
type RankClient interface {
	FetchRank(ctx context.Context, puuid string) ([]byte, error)
}

// RiotTokens is the result of an authorization code exchange.
type RiotTokens struct {
	AccessToken  string
	RefreshToken string
}

// RiotAuthClient runs the Riot authorization code flow.
type RiotAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (RiotTokens, error)
	FetchPUUID(ctx context.Context, accessToken string) (string, error)
}
