package router

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"unicode"
)

// Module is a command group reachable through the router.
type Module interface {
	// Commands returns the fixed command set in canonical case.
	Commands() []string

	// Help returns the module's help text. It must be safe to call at any
	// time, including for commands the module does not know.
	Help(req *Request) string

	// Execute runs a command from Commands. Arguments are in req.Args.
	Execute(ctx context.Context, req *Request, command string)
}

// Entry is one registered module, as listed by Registry.List.
type Entry struct {
	ID     string
	Type   string
	Module Module
}

// Registry maps identifiers to modules. It is populated at startup and only
// read afterwards, so lookups take no lock. Register must not be called once
// routing has started.
type Registry struct {
	modules map[string]Module
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		modules: make(map[string]Module),
		logger:  logger.With("component", "registry"),
	}
}

// Register binds id to m. It returns false, leaving the registry unchanged,
// when id is already bound or is not a lowercase word.
func (r *Registry) Register(id string, m Module) bool {
	if !validID(id) {
		r.logger.Error("invalid module identifier", "id", id, "module", typeName(m))
		return false
	}
	if existing, ok := r.modules[id]; ok {
		r.logger.Error("module identifier already registered",
			"id", id,
			"module", typeName(m),
			"existing", typeName(existing),
		)
		return false
	}

	r.modules[id] = m
	r.logger.Debug("module registered", "id", id, "module", typeName(m))
	return true
}

// Lookup returns the module bound to id.
func (r *Registry) Lookup(id string) (Module, bool) {
	m, ok := r.modules[id]
	return m, ok
}

// List returns every registered module sorted by identifier.
func (r *Registry) List() []Entry {
	out := make([]Entry, 0, len(r.modules))
	for id, m := range r.modules {
		out = append(out, Entry{ID: id, Type: typeName(m), Module: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Table renders List as a two-column table. Column widths follow the longest
// module type name and identifier currently registered.
func (r *Registry) Table() string {
	entries := r.List()

	const modHeader, idHeader = "module", "identifier"
	modWidth, idWidth := len(modHeader), len(idHeader)
	for _, e := range entries {
		modWidth = max(modWidth, len(e.Type))
		idWidth = max(idWidth, len(e.ID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s | %-*s\n", modWidth, modHeader, idWidth, idHeader)
	fmt.Fprintf(&b, "%s-+-%s\n", strings.Repeat("-", modWidth), strings.Repeat("-", idWidth))
	for _, e := range entries {
		fmt.Fprintf(&b, "%-*s | %-*s\n", modWidth, e.Type, idWidth, e.ID)
	}
	return b.String()
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	return id == strings.ToLower(id) && !strings.ContainsFunc(id, unicode.IsSpace)
}

// typeName returns the bare type name of m, e.g. "RoleModule".
func typeName(m Module) string {
	if m == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
