package memstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
)

// Fixture seeds a store with guilds, roles and members.
type Fixture struct {
	Guilds []GuildFixture `yaml:"guilds"`
}

// GuildFixture describes one guild. Member roles reference role names.
type GuildFixture struct {
	ID      string          `yaml:"id"`
	Self    MemberFixture   `yaml:"self"`
	Roles   []RoleFixture   `yaml:"roles"`
	Members []MemberFixture `yaml:"members"`
}

// RoleFixture describes one role.
type RoleFixture struct {
	Name        string `yaml:"name"`
	Position    int    `yaml:"position"`
	Mentionable bool   `yaml:"mentionable"`
}

// MemberFixture describes one member.
type MemberFixture struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// DefaultFixture is the sandbox guild used when no fixture file is given.
func DefaultFixture() Fixture {
	return Fixture{Guilds: []GuildFixture{{
		ID:   "sandbox",
		Self: MemberFixture{ID: "bot", Name: "RoleBot", Roles: []string{"RoleBot"}},
		Roles: []RoleFixture{
			{Name: "Admin", Position: 10},
			{Name: "RoleBot", Position: 8},
			{Name: "Moderator", Position: 6},
			{Name: "Gamer", Position: 3},
			{Name: "Artist", Position: 2},
			{Name: "Reader", Position: 1},
		},
		Members: []MemberFixture{
			{ID: "you", Name: "you", Roles: []string{"Reader"}},
			{ID: "alice", Name: "alice", Roles: []string{"Gamer", "Artist"}},
		},
	}}}
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("reading fixture: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixture{}, fmt.Errorf("parsing fixture: %w", err)
	}
	return fx, nil
}

// Seed creates a store populated from fx.
func Seed(fx Fixture, opts ...Option) (*Store, error) {
	s := New(opts...)
	for _, g := range fx.Guilds {
		if g.ID == "" {
			return nil, fmt.Errorf("fixture guild without id")
		}
		s.AddGuild(g.ID, g.Self.ID, g.Self.Name)

		byName := make(map[string]string, len(g.Roles))
		for _, rf := range g.Roles {
			r, err := s.PutRole(g.ID, guild.Role{Name: rf.Name, Position: rf.Position, Mentionable: rf.Mentionable})
			if err != nil {
				return nil, err
			}
			if _, dup := byName[rf.Name]; !dup {
				byName[rf.Name] = r.ID
			}
		}

		for _, mf := range append([]MemberFixture{g.Self}, g.Members...) {
			m := guild.Member{ID: mf.ID, DisplayName: mf.Name}
			for _, name := range mf.Roles {
				id, ok := byName[name]
				if !ok {
					return nil, fmt.Errorf("guild %s member %s: role %q: %w", g.ID, mf.ID, name, guild.ErrUnknownRole)
				}
				m.RoleIDs = append(m.RoleIDs, id)
			}
			if err := s.PutMember(g.ID, m); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}
