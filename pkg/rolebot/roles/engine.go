// Package roles reconciles role requests against the remote guild store.
//
// Every mutation is asynchronous. Operations return a Future that completes
// with a Result only after the store has confirmed or refused the request,
// and multi-role results are computed by diffing the member's role set
// before and after, so the reported change is what actually happened.
//
// Known limitations: duplicate role names resolve to the first role in guild
// listing order, and createRole checks for an existing name before creating
// without any serialization, so two concurrent creates of one name can both
// succeed.
package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jholhewres/rolebot/pkg/rolebot/access"
	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
	"github.com/jholhewres/rolebot/pkg/rolebot/metrics"
)

// Kind is the operation a Result describes.
type Kind string

const (
	KindAdd       Kind = "add"
	KindRemove    Kind = "remove"
	KindRemoveAll Kind = "removeAll"
	KindCreate    Kind = "create"
)

// Status classifies a Result.
type Status int

const (
	// StatusApplied means at least one requested change was confirmed.
	StatusApplied Status = iota

	// StatusNoop means nothing was submitted or nothing changed.
	StatusNoop

	// StatusFailed means the store refused or could not be read.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return metrics.OutcomeApplied
	case StatusNoop:
		return metrics.OutcomeNoop
	default:
		return metrics.OutcomeFailed
	}
}

// Result records one reconciled operation. Changed is always a subset of
// Requested.
type Result struct {
	Kind      Kind
	Member    string
	Requested []string
	Changed   []string
	Status    Status
	Message   string
}

// ReadFailed is the reply when the guild state cannot be read. The cause is
// logged, not shown.
const ReadFailed = "Could not read the guild's roles right now, please try again later"

// Engine performs role operations. It holds no state between calls.
type Engine struct {
	store   guild.Store
	filter  *access.Filter
	logger  *slog.Logger
	metrics *metrics.Collector

	mentionableDelay time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records operation outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithMentionableDelay issues the mentionable follow-up a fixed delay after
// creation completes instead of immediately.
func WithMentionableDelay(d time.Duration) Option {
	return func(e *Engine) { e.mentionableDelay = d }
}

// NewEngine creates an engine over store.
func NewEngine(store guild.Store, filter *access.Filter, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if filter == nil {
		filter = access.NewFilter(nil)
	}
	e := &Engine{
		store:  store,
		filter: filter,
		logger: logger.With("component", "roles"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// snapshot is the guild state read at the start of one operation.
type snapshot struct {
	roles  []guild.Role
	index  map[string]guild.Role
	usable map[string]bool
	member *guild.Member
}

func (e *Engine) snapshot(ctx context.Context, guildID, userID string) (*snapshot, error) {
	roles, err := e.store.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	self, err := e.store.Self(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("reading bot member: %w", err)
	}

	snap := &snapshot{
		roles:  roles,
		index:  guild.Index(roles),
		usable: make(map[string]bool),
	}
	for _, r := range e.filter.Usable(roles, access.BotRoles(roles, self)) {
		snap.usable[r.ID] = true
	}

	if userID != "" {
		snap.member, err = e.store.Member(ctx, guildID, userID)
		if err != nil {
			return nil, fmt.Errorf("reading member: %w", err)
		}
	}
	return snap, nil
}

// resolve finds the first role named exactly name in guild listing order.
func (s *snapshot) resolve(name string) (guild.Role, bool) {
	for _, r := range s.roles {
		if !r.Public && r.Name == name {
			return r, true
		}
	}
	return guild.Role{}, false
}

// UsableRoles lists the roles the bot can hand out, sorted by name.
func (e *Engine) UsableRoles(ctx context.Context, guildID string) ([]guild.Role, error) {
	snap, err := e.snapshot(ctx, guildID, "")
	if err != nil {
		return nil, err
	}
	out := make([]guild.Role, 0, len(snap.usable))
	for _, r := range snap.roles {
		if snap.usable[r.ID] {
			out = append(out, r)
		}
	}
	sortByName(out)
	return out, nil
}

// MemberRoles returns the member and its roles, public role excluded, sorted
// by name.
func (e *Engine) MemberRoles(ctx context.Context, guildID, userID string) (*guild.Member, []guild.Role, error) {
	roles, err := e.store.Roles(ctx, guildID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing roles: %w", err)
	}
	m, err := e.store.Member(ctx, guildID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading member: %w", err)
	}
	return m, heldRoles(guild.Index(roles), m), nil
}

// MembersWith lists members holding any role whose name equals name,
// ignoring case, sorted by display name.
func (e *Engine) MembersWith(ctx context.Context, guildID, name string) ([]guild.Member, error) {
	roles, err := e.store.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	want := make(map[string]bool)
	for _, r := range roles {
		if !r.Public && strings.EqualFold(r.Name, name) {
			want[r.ID] = true
		}
	}
	if len(want) == 0 {
		return nil, nil
	}

	members, err := e.store.Members(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	var out []guild.Member
	for _, m := range members {
		for _, id := range m.RoleIDs {
			if want[id] {
				out = append(out, m)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// AddRole assigns one role to a member.
func (e *Engine) AddRole(ctx context.Context, guildID, userID, name string) *guild.Future[Result] {
	res := Result{Kind: KindAdd, Requested: []string{name}}

	snap, err := e.snapshot(ctx, guildID, userID)
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}
	res.Member = snap.member.DisplayName

	role, ok := snap.resolve(name)
	switch {
	case !ok:
		return e.resolved(res.noop(fmt.Sprintf("Role %s does not exist. Maybe try creating it first", name)), nil)
	case snap.member.HasRole(role.ID):
		return e.resolved(res.noop(fmt.Sprintf("%s already has role %s", res.Member, role.Name)), nil)
	case !snap.usable[role.ID]:
		return e.resolved(res.noop(fmt.Sprintf("Role %s cannot be managed by the bot", role.Name)), nil)
	}

	fut := e.store.AddRole(ctx, guildID, userID, role.ID)
	return settle(e, fut, func(_ struct{}, err error) (Result, error) {
		if err != nil {
			return res.failed(fmt.Sprintf("Could not add role %s to %s", role.Name, res.Member)), err
		}
		return res.applied([]string{role.Name}, fmt.Sprintf("Added role %s to %s", role.Name, res.Member)), nil
	})
}

// AddRoles assigns several roles in one request. Names that do not resolve
// to a usable role are skipped.
func (e *Engine) AddRoles(ctx context.Context, guildID, userID string, names []string) *guild.Future[Result] {
	res := Result{Kind: KindAdd}

	snap, err := e.snapshot(ctx, guildID, userID)
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}
	res.Member = snap.member.DisplayName

	var ids []string
	seen := make(map[string]bool)
	for _, name := range names {
		role, ok := snap.resolve(name)
		if !ok || !snap.usable[role.ID] || seen[role.ID] || snap.member.HasRole(role.ID) {
			continue
		}
		seen[role.ID] = true
		ids = append(ids, role.ID)
		res.Requested = append(res.Requested, role.Name)
	}
	if len(ids) == 0 {
		return e.resolved(res.noop("No roles to add"), nil)
	}

	before := snap.member.RoleIDs
	fut := e.store.AddRoles(ctx, guildID, userID, ids)
	return settle(e, fut, func(_ struct{}, submitErr error) (Result, error) {
		after, err := e.store.Member(context.WithoutCancel(ctx), guildID, userID)
		if err != nil {
			return res.failed(fmt.Sprintf("Could not confirm roles added to %s", res.Member)), err
		}
		changed := roleNames(snap.index, intersect(difference(after.RoleIDs, before), ids))
		refused := missing(res.Requested, changed)
		if len(changed) == 0 {
			return res.failed(withRefused(fmt.Sprintf("Did not add any roles to %s", res.Member), "add", refused)), submitErr
		}
		msg := fmt.Sprintf("Added roles to %s: %s", res.Member, strings.Join(changed, ", "))
		return res.applied(changed, withRefused(msg, "add", refused)), submitErr
	})
}

// RemoveRole takes one role from a member.
func (e *Engine) RemoveRole(ctx context.Context, guildID, userID, name string) *guild.Future[Result] {
	res := Result{Kind: KindRemove, Requested: []string{name}}

	snap, err := e.snapshot(ctx, guildID, userID)
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}
	res.Member = snap.member.DisplayName

	role, ok := snap.resolve(name)
	switch {
	case !ok:
		return e.resolved(res.noop(fmt.Sprintf("Role %s does not exist", name)), nil)
	case !snap.member.HasRole(role.ID):
		return e.resolved(res.noop(fmt.Sprintf("%s is not assigned to %s", role.Name, res.Member)), nil)
	case !snap.usable[role.ID]:
		return e.resolved(res.noop(fmt.Sprintf("Role %s cannot be managed by the bot", role.Name)), nil)
	}

	fut := e.store.RemoveRole(ctx, guildID, userID, role.ID)
	return settle(e, fut, func(_ struct{}, err error) (Result, error) {
		if err != nil {
			return res.failed(fmt.Sprintf("Could not remove role %s from %s", role.Name, res.Member)), err
		}
		return res.applied([]string{role.Name}, fmt.Sprintf("Removed role %s from %s", role.Name, res.Member)), nil
	})
}

// RemoveRoles takes several roles in one request. Names the member does not
// hold, or that the bot cannot manage, are dropped.
func (e *Engine) RemoveRoles(ctx context.Context, guildID, userID string, names []string) *guild.Future[Result] {
	res := Result{Kind: KindRemove}

	snap, err := e.snapshot(ctx, guildID, userID)
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}
	res.Member = snap.member.DisplayName

	var ids []string
	seen := make(map[string]bool)
	for _, name := range names {
		role, ok := snap.resolve(name)
		if !ok || !snap.usable[role.ID] || seen[role.ID] || !snap.member.HasRole(role.ID) {
			continue
		}
		seen[role.ID] = true
		ids = append(ids, role.ID)
		res.Requested = append(res.Requested, role.Name)
	}
	if len(ids) == 0 {
		return e.resolved(res.noop("No roles to remove"), nil)
	}

	before := snap.member.RoleIDs
	fut := e.store.RemoveRoles(ctx, guildID, userID, ids)
	return settle(e, fut, func(_ struct{}, submitErr error) (Result, error) {
		after, err := e.store.Member(context.WithoutCancel(ctx), guildID, userID)
		if err != nil {
			return res.failed(fmt.Sprintf("Could not confirm roles removed from %s", res.Member)), err
		}
		changed := roleNames(snap.index, intersect(difference(before, after.RoleIDs), ids))
		refused := missing(res.Requested, changed)
		if len(changed) == 0 {
			return res.failed(withRefused(fmt.Sprintf("Did not remove any roles from %s", res.Member), "remove", refused)), submitErr
		}
		msg := fmt.Sprintf("Removed roles from %s: %s", res.Member, strings.Join(changed, ", "))
		return res.applied(changed, withRefused(msg, "remove", refused)), submitErr
	})
}

// RemoveAllRoles removes every role the member holds, one request per role,
// and reports exactly the removals the store confirmed.
func (e *Engine) RemoveAllRoles(ctx context.Context, guildID, userID string) *guild.Future[Result] {
	res := Result{Kind: KindRemoveAll}

	snap, err := e.snapshot(ctx, guildID, userID)
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}
	res.Member = snap.member.DisplayName

	held := heldRoles(snap.index, snap.member)
	if len(held) == 0 {
		return e.resolved(res.noop(fmt.Sprintf("%s has no roles", res.Member)), nil)
	}
	for _, r := range held {
		res.Requested = append(res.Requested, r.Name)
	}

	pending := make([]*guild.Future[struct{}], len(held))
	for i, r := range held {
		pending[i] = e.store.RemoveRole(ctx, guildID, userID, r.ID)
	}

	done := guild.Go(func() (Result, error) {
		var (
			g       errgroup.Group
			mu      sync.Mutex
			removed []string
		)
		for i, fut := range pending {
			role := held[i]
			g.Go(func() error {
				if _, err := fut.Await(context.WithoutCancel(ctx)); err != nil {
					e.logger.Warn("role removal refused",
						"guild", guildID, "member", userID, "role", role.Name, "error", err)
					return nil
				}
				mu.Lock()
				removed = append(removed, role.Name)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		sort.Strings(removed)
		refused := missing(res.Requested, removed)
		if len(removed) == 0 {
			return res.failed(withRefused(fmt.Sprintf("Did not remove any roles from %s", res.Member), "remove", refused)), nil
		}
		msg := fmt.Sprintf("Roles removed from %s: %s", res.Member, strings.Join(removed, ", "))
		return res.applied(removed, withRefused(msg, "remove", refused)), nil
	})
	return settle(e, done, func(r Result, err error) (Result, error) { return r, err })
}

// CreateRole creates a mentionable role unless one with the same name
// already exists.
func (e *Engine) CreateRole(ctx context.Context, guildID, name string) *guild.Future[Result] {
	res := Result{Kind: KindCreate, Requested: []string{name}}

	snap, err := e.snapshot(ctx, guildID, "")
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}
	if _, exists := snap.resolve(name); exists {
		return e.resolved(res.noop(fmt.Sprintf("Role %s already exists", name)), nil)
	}

	return settle(e, e.create(ctx, guildID, name), func(r Result, err error) (Result, error) { return r, err })
}

// CreateRoles creates each name that does not already exist and reports the
// ones created.
func (e *Engine) CreateRoles(ctx context.Context, guildID string, names []string) *guild.Future[Result] {
	res := Result{Kind: KindCreate}

	snap, err := e.snapshot(ctx, guildID, "")
	if err != nil {
		return e.resolved(res.failed(ReadFailed), err)
	}

	var fresh []string
	seen := make(map[string]bool)
	for _, name := range names {
		if _, exists := snap.resolve(name); exists || seen[name] {
			continue
		}
		seen[name] = true
		fresh = append(fresh, name)
	}
	res.Requested = fresh
	if len(fresh) == 0 {
		return e.resolved(res.noop("No roles to create"), nil)
	}

	pending := make([]*guild.Future[Result], len(fresh))
	for i, name := range fresh {
		pending[i] = e.create(ctx, guildID, name)
	}

	done := guild.Go(func() (Result, error) {
		var created, unmentionable []string
		for _, fut := range pending {
			r, _ := fut.Await(context.WithoutCancel(ctx))
			switch {
			case r.Status == StatusApplied:
				created = append(created, r.Changed...)
			case len(r.Changed) > 0:
				unmentionable = append(unmentionable, r.Changed...)
			}
		}
		sort.Strings(created)
		sort.Strings(unmentionable)
		refused := missing(missing(res.Requested, created), unmentionable)

		var msg string
		if len(created) == 0 {
			msg = "Did not create any roles"
		} else {
			msg = "Created roles: " + strings.Join(created, ", ")
		}
		if len(unmentionable) > 0 {
			msg += ". Created but could not make mentionable: " + strings.Join(unmentionable, ", ")
		}
		msg = withRefused(msg, "create", refused)
		if len(created) == 0 {
			res.Changed = unmentionable
			return res.failed(msg), nil
		}
		made := append(append([]string(nil), created...), unmentionable...)
		sort.Strings(made)
		return res.applied(made, msg), nil
	})
	return settle(e, done, func(r Result, err error) (Result, error) { return r, err })
}

// create submits the role creation and chains the mentionable follow-up off
// its completion. The role counts as created once it is mentionable.
func (e *Engine) create(ctx context.Context, guildID, name string) *guild.Future[Result] {
	res := Result{Kind: KindCreate, Requested: []string{name}}
	bg := context.WithoutCancel(ctx)

	return guild.Chain(e.store.CreateRole(ctx, guildID, name), func(role guild.Role, err error) *guild.Future[Result] {
		if err != nil {
			e.logger.Warn("role creation refused", "guild", guildID, "role", name, "error", err)
			return guild.Resolved(res.failed(fmt.Sprintf("Could not create role %s", name)), nil)
		}
		if e.mentionableDelay > 0 {
			time.Sleep(e.mentionableDelay)
		}

		out := guild.NewFuture[Result]()
		e.store.SetMentionable(bg, guildID, role.ID, true).Then(func(updated guild.Role, err error) {
			if err != nil {
				e.logger.Warn("role created but not mentionable", "guild", guildID, "role", role.Name, "error", err)
				out.Complete(Result{
					Kind:      KindCreate,
					Requested: res.Requested,
					Changed:   []string{role.Name},
					Status:    StatusFailed,
					Message:   fmt.Sprintf("Created role %s but could not make it mentionable", role.Name),
				}, nil)
				return
			}
			out.Complete(res.applied([]string{updated.Name}, fmt.Sprintf("Created role %s", updated.Name)), nil)
		})
		return out
	})
}

// settle attaches the reporting continuation to a store completion. The
// returned future never carries an error; failures live in the Result.
func settle[T any](e *Engine, fut *guild.Future[T], report func(T, error) (Result, error)) *guild.Future[Result] {
	out := guild.NewFuture[Result]()
	fut.Then(func(val T, err error) {
		res, cause := report(val, err)
		out.Complete(e.record(res, cause), nil)
	})
	return out
}

// resolved reports a result that needed no store completion.
func (e *Engine) resolved(res Result, cause error) *guild.Future[Result] {
	return guild.Resolved(e.record(res, cause), nil)
}

func (e *Engine) record(res Result, cause error) Result {
	e.metrics.Mutation(string(res.Kind), res.Status.String())

	attrs := []any{
		"op", res.Kind,
		"status", res.Status.String(),
		"member", res.Member,
		"requested", res.Requested,
		"changed", res.Changed,
	}
	if cause != nil {
		e.logger.Warn("role operation incomplete", append(attrs, "error", cause)...)
	} else {
		e.logger.Info("role operation reported", attrs...)
	}
	return res
}

func (r Result) noop(msg string) Result {
	r.Status = StatusNoop
	r.Message = msg
	return r
}

func (r Result) failed(msg string) Result {
	r.Status = StatusFailed
	r.Message = msg
	return r
}

func (r Result) applied(changed []string, msg string) Result {
	r.Status = StatusApplied
	r.Changed = changed
	r.Message = msg
	return r
}

// missing returns the names in requested that are not in got, sorted.
func missing(requested, got []string) []string {
	have := make(map[string]bool, len(got))
	for _, n := range got {
		have[n] = true
	}
	var out []string
	for _, n := range requested {
		if !have[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// withRefused appends the names the store refused so they can be retried.
func withRefused(msg, verb string, refused []string) string {
	if len(refused) == 0 {
		return msg
	}
	return fmt.Sprintf("%s. Could not %s: %s", msg, verb, strings.Join(refused, ", "))
}

// heldRoles resolves a member's role ids, skipping the public role and ids
// no longer in the guild, sorted by name.
func heldRoles(index map[string]guild.Role, m *guild.Member) []guild.Role {
	var out []guild.Role
	for _, id := range m.RoleIDs {
		r, ok := index[id]
		if !ok || r.Public {
			continue
		}
		out = append(out, r)
	}
	sortByName(out)
	return out
}

func sortByName(roles []guild.Role) {
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
}

// roleNames maps ids to sorted role names.
func roleNames(index map[string]guild.Role, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, ok := index[id]; ok {
			out = append(out, r.Name)
		}
	}
	sort.Strings(out)
	return out
}

// difference returns the ids in a that are not in b.
func difference(a, b []string) []string {
	drop := make(map[string]bool, len(b))
	for _, id := range b {
		drop[id] = true
	}
	var out []string
	for _, id := range a {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

// intersect returns the ids in a that are also in b.
func intersect(a, b []string) []string {
	keep := make(map[string]bool, len(b))
	for _, id := range b {
		keep[id] = true
	}
	var out []string
	for _, id := range a {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out
}
