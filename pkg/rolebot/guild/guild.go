// Package guild describes the remote guild object model the bot manipulates:
// roles, members and the store that owns them. The store is authoritative;
// nothing in this package caches remote state between invocations.
package guild

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrUnknownGuild is returned when a guild id cannot be resolved.
	ErrUnknownGuild = errors.New("unknown guild")

	// ErrUnknownMember is returned when a member id cannot be resolved.
	ErrUnknownMember = errors.New("unknown member")

	// ErrUnknownRole is returned when a role id cannot be resolved.
	ErrUnknownRole = errors.New("unknown role")

	// ErrRejected is returned by stores when the platform refused a mutation.
	ErrRejected = errors.New("mutation rejected")
)

// Role is a named, positioned role in a guild.
type Role struct {
	ID          string
	Name        string
	Position    int
	Mentionable bool

	// Public marks the guild's implicit everyone role.
	Public bool
}

// Member is a guild participant and the ids of the roles assigned to it.
type Member struct {
	ID          string
	DisplayName string
	RoleIDs     []string
}

// HasRole reports whether the member currently holds roleID.
func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Store is the remote guild/role/member store.
//
// Reads return fresh state. Mutations are submitted and return immediately;
// the returned Future completes once the platform confirmed or refused the
// request. Completions of distinct requests may arrive in any order.
type Store interface {
	// Roles lists the guild's roles in listing order (highest position first).
	Roles(ctx context.Context, guildID string) ([]Role, error)

	// Member fetches one member with its current role set.
	Member(ctx context.Context, guildID, userID string) (*Member, error)

	// Members lists every member of the guild.
	Members(ctx context.Context, guildID string) ([]Member, error)

	// Self returns the bot's own member in the guild.
	Self(ctx context.Context, guildID string) (*Member, error)

	AddRole(ctx context.Context, guildID, userID, roleID string) *Future[struct{}]
	AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) *Future[struct{}]
	RemoveRole(ctx context.Context, guildID, userID, roleID string) *Future[struct{}]
	RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) *Future[struct{}]
	CreateRole(ctx context.Context, guildID, name string) *Future[Role]
	SetMentionable(ctx context.Context, guildID, roleID string, mentionable bool) *Future[Role]
}

// SortRoles orders roles the way guilds list them: highest position first,
// ties broken by id so the order is stable.
func SortRoles(roles []Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return roles[i].Position > roles[j].Position
		}
		return roles[i].ID < roles[j].ID
	})
}

// Names returns the names of roles, sorted alphabetically.
func Names(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// Index maps role ids to roles.
func Index(roles []Role) map[string]Role {
	idx := make(map[string]Role, len(roles))
	for _, r := range roles {
		idx[r.ID] = r
	}
	return idx
}
