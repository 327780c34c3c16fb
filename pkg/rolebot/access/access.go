// Package access decides which guild roles the bot may hand out.
//
// The platform refuses any change to a role positioned at or above the
// actor's highest role, so the bot only offers roles strictly below its own
// top role. The public role and a denylist of protected names are never
// offered, whatever their position.
package access

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
)

// MatchMode selects how a protected name is compared with role names.
type MatchMode string

const (
	// MatchExact protects roles whose name equals the rule name.
	MatchExact MatchMode = "exact"

	// MatchContains protects roles whose name contains the rule name.
	MatchContains MatchMode = "contains"
)

// Rule is one denylist entry. Comparison is case-insensitive.
type Rule struct {
	Name  string    `yaml:"name"`
	Match MatchMode `yaml:"match"`
}

// DefaultRules protects administrative roles.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "admin", Match: MatchContains},
		{Name: "moderator", Match: MatchContains},
		{Name: "mod", Match: MatchExact},
		{Name: "overlord", Match: MatchContains},
	}
}

// Filter computes usable roles. It is immutable and safe for concurrent use.
type Filter struct {
	rules []Rule
}

// NewFilter creates a filter over the given denylist. Rules with an empty
// name are dropped; an empty match mode means exact.
func NewFilter(rules []Rule) *Filter {
	kept := make([]Rule, 0, len(rules))
	for _, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		mode := r.Match
		if mode == "" {
			mode = MatchExact
		}
		kept = append(kept, Rule{Name: fold(name), Match: mode})
	}
	return &Filter{rules: kept}
}

// Protected reports whether name matches the denylist.
func (f *Filter) Protected(name string) bool {
	n := fold(name)
	for _, r := range f.rules {
		switch r.Match {
		case MatchContains:
			if strings.Contains(n, r.Name) {
				return true
			}
		default:
			if n == r.Name {
				return true
			}
		}
	}
	return false
}

// Usable returns the guild roles positioned strictly below the highest of
// botRoles, minus the public role and protected names, in guild order.
// A bot holding no roles can use nothing.
func (f *Filter) Usable(guildRoles, botRoles []guild.Role) []guild.Role {
	if len(botRoles) == 0 {
		return nil
	}
	top := botRoles[0].Position
	for _, r := range botRoles[1:] {
		if r.Position > top {
			top = r.Position
		}
	}

	var out []guild.Role
	for _, r := range guildRoles {
		if r.Public || r.Position >= top || f.Protected(r.Name) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// BotRoles resolves the bot member's role ids against guildRoles.
func BotRoles(guildRoles []guild.Role, self *guild.Member) []guild.Role {
	if self == nil {
		return nil
	}
	idx := guild.Index(guildRoles)
	out := make([]guild.Role, 0, len(self.RoleIDs))
	for _, id := range self.RoleIDs {
		if r, ok := idx[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// fold returns the Unicode case-folded form of s. A Caser keeps state, so a
// fresh one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
