package rbac

import (
	"sort"

	"github.com/huiui/hello-antd-role/internal/shared"
)

// PermissionSet is a user's effective permission set. The admin flag is
// folded in as the wildcard, so Has is the only check path.
type PermissionSet struct {
	names map[string]struct{}
}

// NewPermissionSet builds the effective set from a grants snapshot.
func NewPermissionSet(g Grants) PermissionSet {
	set := PermissionSet{names: make(map[string]struct{}, len(g.Names)+1)}
	for _, n := range g.Names {
		if n = normalizeName(n); n != "" {
			set.names[n] = struct{}{}
		}
	}
	if g.IsAdmin {
		set.names[shared.Wildcard] = struct{}{}
	}
	return set
}

// Has reports whether the set grants name, directly or through the wildcard.
func (s PermissionSet) Has(name string) bool {
	if _, ok := s.names[shared.Wildcard]; ok {
		return true
	}
	_, ok := s.names[normalizeName(name)]
	return ok
}

// HasAny reports whether at least one of names is granted.
func (s PermissionSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// IsSuperuser reports whether the set carries the wildcard.
func (s PermissionSet) IsSuperuser() bool {
	_, ok := s.names[shared.Wildcard]
	return ok
}

// Names returns the granted names sorted.
func (s PermissionSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
