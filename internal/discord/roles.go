package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/arkade-labs/guildxp/internal/rolesync"
)

// RoleProvider implements the authorization API over the gateway session.
// Reads prefer the state cache and fall back to REST; writes always go
// through REST.
type RoleProvider struct {
	session *discordgo.Session
	log     *slog.Logger
}

// NewRoleProvider creates a provider over the bot's session.
func NewRoleProvider(session *discordgo.Session, log *slog.Logger) *RoleProvider {
	if log == nil {
		log = slog.Default()
	}

	return &RoleProvider{
		session: session,
		log:     log,
	}
}

func (p *RoleProvider) ListRoles(_ context.Context, guildID int64) ([]rolesync.Role, error) {
	gid := formatID(guildID)

	var apiRoles []*discordgo.Role
	if guild, err := p.session.State.Guild(gid); err == nil && guild != nil && len(guild.Roles) > 0 {
		apiRoles = guild.Roles
	} else {
		fetched, err := p.session.GuildRoles(gid)
		if err != nil {
			return nil, fmt.Errorf("fetch guild roles: %w", err)
		}
		apiRoles = fetched
	}

	roles := make([]rolesync.Role, 0, len(apiRoles))
	for _, r := range apiRoles {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		roles = append(roles, rolesync.Role{ID: id, Name: r.Name, Position: r.Position})
	}

	return roles, nil
}

// CreateRole makes a hoisted role so tier members show up as their own
// section in the member list.
func (p *RoleProvider) CreateRole(_ context.Context, guildID int64, name string, color int) (rolesync.Role, error) {
	hoist := true
	created, err := p.session.GuildRoleCreate(formatID(guildID), &discordgo.RoleParams{
		Name:  name,
		Color: &color,
		Hoist: &hoist,
	})
	if err != nil {
		return rolesync.Role{}, fmt.Errorf("create role %q: %w", name, err)
	}

	id, err := strconv.ParseInt(created.ID, 10, 64)
	if err != nil {
		return rolesync.Role{}, fmt.Errorf("parse created role id %q: %w", created.ID, err)
	}

	p.log.Info("role created",
		slog.Int64("guild_id", guildID),
		slog.String("name", name),
	)

	return rolesync.Role{ID: id, Name: created.Name, Position: created.Position}, nil
}

func (p *RoleProvider) MemberRoles(_ context.Context, guildID, userID int64) ([]int64, error) {
	gid, uid := formatID(guildID), formatID(userID)

	member, err := p.session.State.Member(gid, uid)
	if err != nil || member == nil {
		member, err = p.session.GuildMember(gid, uid)
		if err != nil {
			return nil, fmt.Errorf("fetch member: %w", err)
		}
	}

	ids := make([]int64, 0, len(member.Roles))
	for _, r := range member.Roles {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (p *RoleProvider) GrantRole(_ context.Context, guildID, userID, roleID int64) error {
	if err := p.session.GuildMemberRoleAdd(formatID(guildID), formatID(userID), formatID(roleID)); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (p *RoleProvider) RevokeRole(_ context.Context, guildID, userID, roleID int64) error {
	if err := p.session.GuildMemberRoleRemove(formatID(guildID), formatID(userID), formatID(roleID)); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

// ActorTopPosition returns the highest role position held by the bot user
// itself, the rank the hierarchy precondition compares against.
func (p *RoleProvider) ActorTopPosition(ctx context.Context, guildID int64) (int, error) {
	self := p.session.State.User
	if self == nil {
		return 0, fmt.Errorf("gateway session has no self user yet")
	}

	selfID, err := strconv.ParseInt(self.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse self id: %w", err)
	}

	heldIDs, err := p.MemberRoles(ctx, guildID, selfID)
	if err != nil {
		return 0, err
	}

	roles, err := p.ListRoles(ctx, guildID)
	if err != nil {
		return 0, err
	}

	byID := make(map[int64]rolesync.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	top := 0
	for _, id := range heldIDs {
		if r, ok := byID[id]; ok && r.Position > top {
			top = r.Position
		}
	}

	return top, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
