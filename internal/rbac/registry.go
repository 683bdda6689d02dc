package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/huiui/hello-antd-role/internal/shared"
)

// Registry is the closed set of permission names the application knows.
// Routes and catalog entries may only reference registered names.
type Registry struct {
	names map[string]struct{}
}

// NewRegistry builds a registry from names. Blank and duplicate names are
// rejected so a typo in the scope list fails at startup.
func NewRegistry(names ...string) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	for _, raw := range names {
		name := normalizeName(raw)
		if name == "" {
			return nil, fmt.Errorf("rbac: blank permission name in registry")
		}
		if _, dup := r.names[name]; dup {
			return nil, fmt.Errorf("rbac: duplicate permission %q in registry", name)
		}
		r.names[name] = struct{}{}
	}
	return r, nil
}

// DefaultRegistry returns the registry of the application's core scopes.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(shared.CoreScopes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.names[normalizeName(name)]
	return ok
}

// MustHave panics when name is not registered. It is meant for route
// construction, where an unknown name is a programming error.
func (r *Registry) MustHave(name string) string {
	name = normalizeName(name)
	if !r.Has(name) {
		panic(fmt.Sprintf("rbac: permission %q is not registered", name))
	}
	return name
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
