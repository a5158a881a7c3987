// Package discord adapts the Discord REST API to the service gateways.
package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"joinus/partyboard/internal/service"
)

const pageSize = 1000

// restAPI is the subset of *discordgo.Session the gateway uses.
type restAPI interface {
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway implements GuildDirectory, RoleGateway and Notifier over REST.
type Gateway struct {
	api restAPI
}

var (
	_ service.GuildDirectory = (*Gateway)(nil)
	_ service.RoleGateway    = (*Gateway)(nil)
	_ service.Notifier       = (*Gateway)(nil)
)

// NewSession opens a REST-only bot session.
func NewSession(botToken string) (*discordgo.Session, error) {
	if botToken == "" {
		return nil, errors.New("discord: bot token is required")
	}
	return discordgo.New("Bot " + botToken)
}

func NewGateway(session *discordgo.Session) *Gateway {
	return &Gateway{api: session}
}

func (g *Gateway) ListMembers(ctx context.Context, guildID string) ([]service.GuildMember, error) {
	names, err := g.roleNames(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var out []service.GuildMember
	after := ""
	for {
		page, err := g.api.GuildMembers(guildID, after, pageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			out = append(out, toMember(m, names))
		}
		if len(page) < pageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (g *Gateway) GetMember(ctx context.Context, guildID, memberID string) (service.GuildMember, error) {
	m, err := g.api.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return service.GuildMember{}, service.ErrGuildMemberNotFound
		}
		return service.GuildMember{}, err
	}
	names, err := g.roleNames(ctx, guildID)
	if err != nil {
		return service.GuildMember{}, err
	}
	return toMember(m, names), nil
}

// GetOrCreateRole returns the first role named name, creating it when absent.
func (g *Gateway) GetOrCreateRole(ctx context.Context, guildID, name string, color int, hoist bool) (service.RoleRef, error) {
	roles, err := g.api.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return service.RoleRef{}, err
	}
	for _, r := range roles {
		if r.Name == name {
			return service.RoleRef{ID: r.ID, Name: r.Name}, nil
		}
	}

	created, err := g.api.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:  name,
		Color: &color,
		Hoist: &hoist,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("partyboard managed role"))
	if err != nil {
		return service.RoleRef{}, err
	}
	return service.RoleRef{ID: created.ID, Name: created.Name}, nil
}

func (g *Gateway) AddRole(ctx context.Context, guildID, memberID string, role service.RoleRef, reason string) error {
	return g.api.GuildMemberRoleAdd(guildID, memberID, role.ID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (g *Gateway) RemoveRole(ctx context.Context, guildID, memberID string, role service.RoleRef, reason string) error {
	return g.api.GuildMemberRoleRemove(guildID, memberID, role.ID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

// Notify sends text as a direct message.
func (g *Gateway) Notify(ctx context.Context, memberID, text string) error {
	ch, err := g.api.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = g.api.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) roleNames(ctx context.Context, guildID string) (map[string]string, error) {
	roles, err := g.api.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	return names, nil
}

func toMember(m *discordgo.Member, roleNames map[string]string) service.GuildMember {
	out := service.GuildMember{Roles: make([]service.RoleRef, 0, len(m.Roles))}
	if m.User != nil {
		out.ID = m.User.ID
		out.Bot = m.User.Bot
		out.Name = m.User.Username
		if m.User.GlobalName != "" {
			out.Name = m.User.GlobalName
		}
	}
	if m.Nick != "" {
		out.Name = m.Nick
	}
	for _, id := range m.Roles {
		out.Roles = append(out.Roles, service.RoleRef{ID: id, Name: roleNames[id]})
	}
	return out
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// MaskToken hides all but the bot id prefix of a token for logs.
func MaskToken(token string) string {
	if i := strings.IndexByte(token, '.'); i > 0 {
		return token[:i] + ".***"
	}
	return "***"
}
