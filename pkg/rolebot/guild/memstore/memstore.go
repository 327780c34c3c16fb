// Package memstore is an in-memory guild.Store. Mutations complete
// asynchronously, optionally after a delay, and can be rejected per operation
// so callers see the same partial-failure shapes the real platform produces.
// It backs the `rolebot chat` sandbox and the engine tests.
package memstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
)

// Op names a mutating store operation.
type Op string

const (
	OpAddRole        Op = "add_role"
	OpAddRoles       Op = "add_roles"
	OpRemoveRole     Op = "remove_role"
	OpRemoveRoles    Op = "remove_roles"
	OpCreateRole     Op = "create_role"
	OpSetMentionable Op = "set_mentionable"
)

// RejectFunc decides whether a mutation of target (a role id, or the role
// name for OpCreateRole) is refused. Returning nil accepts it.
type RejectFunc func(op Op, guildID, target string) error

type guildState struct {
	selfID  string
	roles   map[string]guild.Role
	members map[string]*guild.Member
	order   []string // member ids in join order
}

// Store is an in-memory guild store safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	guilds map[string]*guildState
	calls  map[Op]int
	nextID int

	latency time.Duration
	reject  RejectFunc
}

// Option configures a Store.
type Option func(*Store)

// WithLatency delays every mutation completion by d.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

// WithReject installs a rejection hook.
func WithReject(fn RejectFunc) Option {
	return func(s *Store) { s.reject = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		guilds: make(map[string]*guildState),
		calls:  make(map[Op]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddGuild creates a guild whose public role shares the guild id, and the
// bot member selfID with the given display name.
func (s *Store) AddGuild(guildID, selfID, selfName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := &guildState{
		selfID:  selfID,
		roles:   map[string]guild.Role{guildID: {ID: guildID, Name: "@everyone", Public: true}},
		members: make(map[string]*guild.Member),
	}
	s.guilds[guildID] = g
	g.members[selfID] = &guild.Member{ID: selfID, DisplayName: selfName}
	g.order = append(g.order, selfID)
}

// PutRole adds or replaces a role. An empty id is assigned automatically.
func (s *Store) PutRole(guildID string, role guild.Role) (guild.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return guild.Role{}, guild.ErrUnknownGuild
	}
	if role.ID == "" {
		role.ID = s.newID()
	}
	g.roles[role.ID] = role
	return role, nil
}

// PutMember adds or replaces a member.
func (s *Store) PutMember(guildID string, m guild.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return guild.ErrUnknownGuild
	}
	if _, exists := g.members[m.ID]; !exists {
		g.order = append(g.order, m.ID)
	}
	cp := m
	cp.RoleIDs = append([]string(nil), m.RoleIDs...)
	g.members[m.ID] = &cp
	return nil
}

// Calls returns how many requests of op were submitted.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalMutations returns the number of submitted mutation requests.
func (s *Store) TotalMutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Roles implements guild.Store.
func (s *Store) Roles(_ context.Context, guildID string) ([]guild.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, guild.ErrUnknownGuild
	}
	roles := make([]guild.Role, 0, len(g.roles))
	for _, r := range g.roles {
		roles = append(roles, r)
	}
	guild.SortRoles(roles)
	return roles, nil
}

// Member implements guild.Store.
func (s *Store) Member(_ context.Context, guildID, userID string) (*guild.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, guild.ErrUnknownGuild
	}
	m, ok := g.members[userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, guild.ErrUnknownMember)
	}
	return copyMember(m), nil
}

// Members implements guild.Store.
func (s *Store) Members(_ context.Context, guildID string) ([]guild.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, guild.ErrUnknownGuild
	}
	out := make([]guild.Member, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *copyMember(g.members[id]))
	}
	return out, nil
}

// Self implements guild.Store.
func (s *Store) Self(ctx context.Context, guildID string) (*guild.Member, error) {
	s.mu.Lock()
	g, ok := s.guilds[guildID]
	s.mu.Unlock()
	if !ok {
		return nil, guild.ErrUnknownGuild
	}
	return s.Member(ctx, guildID, g.selfID)
}

// AddRole implements guild.Store.
func (s *Store) AddRole(_ context.Context, guildID, userID, roleID string) *guild.Future[struct{}] {
	s.count(OpAddRole)
	return s.submit(func() (struct{}, error) {
		return struct{}{}, s.applyMember(OpAddRole, guildID, userID, []string{roleID}, true)
	})
}

// AddRoles implements guild.Store. Individually rejected roles are skipped;
// the request fails only when nothing could be applied.
func (s *Store) AddRoles(_ context.Context, guildID, userID string, roleIDs []string) *guild.Future[struct{}] {
	s.count(OpAddRoles)
	ids := append([]string(nil), roleIDs...)
	return s.submit(func() (struct{}, error) {
		return struct{}{}, s.applyMember(OpAddRoles, guildID, userID, ids, true)
	})
}

// RemoveRole implements guild.Store.
func (s *Store) RemoveRole(_ context.Context, guildID, userID, roleID string) *guild.Future[struct{}] {
	s.count(OpRemoveRole)
	return s.submit(func() (struct{}, error) {
		return struct{}{}, s.applyMember(OpRemoveRole, guildID, userID, []string{roleID}, false)
	})
}

// RemoveRoles implements guild.Store.
func (s *Store) RemoveRoles(_ context.Context, guildID, userID string, roleIDs []string) *guild.Future[struct{}] {
	s.count(OpRemoveRoles)
	ids := append([]string(nil), roleIDs...)
	return s.submit(func() (struct{}, error) {
		return struct{}{}, s.applyMember(OpRemoveRoles, guildID, userID, ids, false)
	})
}

// CreateRole implements guild.Store. New roles sit just above the public role.
func (s *Store) CreateRole(_ context.Context, guildID, name string) *guild.Future[guild.Role] {
	s.count(OpCreateRole)
	return submitAfter(s.latency, func() (guild.Role, error) {
		if err := s.rejected(OpCreateRole, guildID, name); err != nil {
			return guild.Role{}, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		g, ok := s.guilds[guildID]
		if !ok {
			return guild.Role{}, guild.ErrUnknownGuild
		}
		for id, r := range g.roles {
			if !r.Public {
				r.Position++
				g.roles[id] = r
			}
		}
		role := guild.Role{ID: s.newID(), Name: name, Position: 1}
		g.roles[role.ID] = role
		return role, nil
	})
}

// SetMentionable implements guild.Store.
func (s *Store) SetMentionable(_ context.Context, guildID, roleID string, mentionable bool) *guild.Future[guild.Role] {
	s.count(OpSetMentionable)
	return submitAfter(s.latency, func() (guild.Role, error) {
		if err := s.rejected(OpSetMentionable, guildID, roleID); err != nil {
			return guild.Role{}, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		g, ok := s.guilds[guildID]
		if !ok {
			return guild.Role{}, guild.ErrUnknownGuild
		}
		r, ok := g.roles[roleID]
		if !ok {
			return guild.Role{}, guild.ErrUnknownRole
		}
		r.Mentionable = mentionable
		g.roles[roleID] = r
		return r, nil
	})
}

func (s *Store) submit(fn func() (struct{}, error)) *guild.Future[struct{}] {
	return submitAfter(s.latency, fn)
}

func submitAfter[T any](latency time.Duration, fn func() (T, error)) *guild.Future[T] {
	return guild.Go(func() (T, error) {
		if latency > 0 {
			time.Sleep(latency)
		}
		return fn()
	})
}

// applyMember adds or removes roleIDs on a member, skipping rejected ids.
func (s *Store) applyMember(op Op, guildID, userID string, roleIDs []string, add bool) error {
	accepted := make([]string, 0, len(roleIDs))
	var lastErr error
	for _, id := range roleIDs {
		if err := s.rejected(op, guildID, id); err != nil {
			lastErr = err
			continue
		}
		accepted = append(accepted, id)
	}
	if len(accepted) == 0 && lastErr != nil {
		return lastErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return guild.ErrUnknownGuild
	}
	m, ok := g.members[userID]
	if !ok {
		return guild.ErrUnknownMember
	}
	for _, id := range accepted {
		if _, exists := g.roles[id]; !exists {
			return fmt.Errorf("role %s: %w", id, guild.ErrUnknownRole)
		}
	}

	for _, id := range accepted {
		if add {
			if !m.HasRole(id) {
				m.RoleIDs = append(m.RoleIDs, id)
			}
			continue
		}
		kept := m.RoleIDs[:0]
		for _, have := range m.RoleIDs {
			if have != id {
				kept = append(kept, have)
			}
		}
		m.RoleIDs = kept
	}
	return nil
}

func (s *Store) rejected(op Op, guildID, target string) error {
	if s.reject == nil {
		return nil
	}
	return s.reject(op, guildID, target)
}

func (s *Store) count(op Op) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

// newID must be called with mu held.
func (s *Store) newID() string {
	s.nextID++
	return "r" + strconv.Itoa(s.nextID)
}

func copyMember(m *guild.Member) *guild.Member {
	cp := *m
	cp.RoleIDs = append([]string(nil), m.RoleIDs...)
	return &cp
}
