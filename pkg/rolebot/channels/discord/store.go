package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
)

// membersPage is the largest page the member list endpoint returns.
const membersPage = 1000

// Store is a guild.Store backed by the Discord REST API. It reads fresh
// state on every call; the session's cache is only used for the bot's own id.
type Store struct {
	session *discordgo.Session
}

// NewStore creates a store on an existing session.
func NewStore(session *discordgo.Session) *Store {
	return &Store{session: session}
}

// Roles implements guild.Store.
func (s *Store) Roles(ctx context.Context, guildID string) ([]guild.Role, error) {
	raw, err := s.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing roles of %s: %w", guildID, mapErr(err))
	}
	return convertRoles(guildID, raw), nil
}

// Member implements guild.Store.
func (s *Store) Member(ctx context.Context, guildID, userID string) (*guild.Member, error) {
	m, err := s.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching member %s: %w", userID, mapErr(err))
	}
	out := convertMember(m)
	return &out, nil
}

// Members implements guild.Store.
func (s *Store) Members(ctx context.Context, guildID string) ([]guild.Member, error) {
	var (
		out   []guild.Member
		after string
	)
	for {
		page, err := s.session.GuildMembers(guildID, after, membersPage, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing members of %s: %w", guildID, mapErr(err))
		}
		for _, m := range page {
			out = append(out, convertMember(m))
		}
		if len(page) < membersPage {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// Self implements guild.Store.
func (s *Store) Self(ctx context.Context, guildID string) (*guild.Member, error) {
	if s.session.State == nil || s.session.State.User == nil {
		return nil, fmt.Errorf("bot user unknown before the gateway is ready")
	}
	return s.Member(ctx, guildID, s.session.State.User.ID)
}

// AddRole implements guild.Store.
func (s *Store) AddRole(ctx context.Context, guildID, userID, roleID string) *guild.Future[struct{}] {
	return guild.Go(func() (struct{}, error) {
		err := s.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
		return struct{}{}, mapErr(err)
	})
}

// AddRoles implements guild.Store with a single member edit carrying the
// union of the current and requested roles.
func (s *Store) AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) *guild.Future[struct{}] {
	ids := append([]string(nil), roleIDs...)
	return guild.Go(func() (struct{}, error) {
		return struct{}{}, s.editRoles(ctx, guildID, userID, func(current []string) []string {
			return union(current, ids)
		})
	})
}

// RemoveRole implements guild.Store.
func (s *Store) RemoveRole(ctx context.Context, guildID, userID, roleID string) *guild.Future[struct{}] {
	return guild.Go(func() (struct{}, error) {
		err := s.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
		return struct{}{}, mapErr(err)
	})
}

// RemoveRoles implements guild.Store with a single member edit.
func (s *Store) RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) *guild.Future[struct{}] {
	ids := append([]string(nil), roleIDs...)
	return guild.Go(func() (struct{}, error) {
		return struct{}{}, s.editRoles(ctx, guildID, userID, func(current []string) []string {
			return without(current, ids)
		})
	})
}

// CreateRole implements guild.Store.
func (s *Store) CreateRole(ctx context.Context, guildID, name string) *guild.Future[guild.Role] {
	return guild.Go(func() (guild.Role, error) {
		r, err := s.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
		if err != nil {
			return guild.Role{}, mapErr(err)
		}
		return convertRole(guildID, r), nil
	})
}

// SetMentionable implements guild.Store.
func (s *Store) SetMentionable(ctx context.Context, guildID, roleID string, mentionable bool) *guild.Future[guild.Role] {
	return guild.Go(func() (guild.Role, error) {
		params := &discordgo.RoleParams{Mentionable: &mentionable}
		r, err := s.session.GuildRoleEdit(guildID, roleID, params, discordgo.WithContext(ctx))
		if err != nil {
			return guild.Role{}, mapErr(err)
		}
		return convertRole(guildID, r), nil
	})
}

func (s *Store) editRoles(ctx context.Context, guildID, userID string, next func([]string) []string) error {
	m, err := s.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	roles := next(m.Roles)
	_, err = s.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roles}, discordgo.WithContext(ctx))
	return mapErr(err)
}

func convertRoles(guildID string, raw []*discordgo.Role) []guild.Role {
	out := make([]guild.Role, 0, len(raw))
	for _, r := range raw {
		if r != nil {
			out = append(out, convertRole(guildID, r))
		}
	}
	guild.SortRoles(out)
	return out
}

// convertRole maps a platform role. The everyone role shares the guild's id.
func convertRole(guildID string, r *discordgo.Role) guild.Role {
	return guild.Role{
		ID:          r.ID,
		Name:        r.Name,
		Position:    r.Position,
		Mentionable: r.Mentionable,
		Public:      r.ID == guildID,
	}
}

func convertMember(m *discordgo.Member) guild.Member {
	out := guild.Member{
		DisplayName: displayName(m, nil),
		RoleIDs:     append([]string(nil), m.Roles...),
	}
	if m.User != nil {
		out.ID = m.User.ID
	}
	return out
}

// mapErr translates REST failures into the guild sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownGuild:
			return fmt.Errorf("%w: %w", guild.ErrUnknownGuild, err)
		case discordgo.ErrCodeUnknownMember:
			return fmt.Errorf("%w: %w", guild.ErrUnknownMember, err)
		case discordgo.ErrCodeUnknownRole:
			return fmt.Errorf("%w: %w", guild.ErrUnknownRole, err)
		}
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", guild.ErrRejected, err)
	}
	return err
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(a)+len(b))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func without(a, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	out := make([]string, 0, len(a))
	for _, id := range a {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
