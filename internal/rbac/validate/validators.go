// Package validate defines the pluggable name-validation collaborators the
// repository consults before any I/O.
package validate

import "regexp"

// Names is the set of pluggable predicates the repository calls before
// touching the KV adapter. Invalid names fail BadRequest with no I/O.
type Names struct {
	IsValidResourceName func(name string) bool
	IsValidScopeName    func(name string) bool
	IsValidRoleName     func(name string) bool
	IsDefaultScope      func(name string) bool
}

// defaultNamePattern accepts any non-empty string without a '#' (the key
// formatter's field separator) or any whitespace; resourceNames are
// documented as opaque strings (e.g. a URI) so this stays permissive.
var defaultNamePattern = regexp.MustCompile(`^[^\s#]+$`)

// DefaultScopeName is the conventional "match every scope" sentinel.
const DefaultScopeName = "*"

// Default returns the Names collaborator used when no caller-supplied
// validators are configured: any non-empty, '#'-free, whitespace-free name
// is valid, and DefaultScopeName is the default scope.
func Default() Names {
	return Names{
		IsValidResourceName: matchesDefaultPattern,
		IsValidScopeName:    matchesDefaultPattern,
		IsValidRoleName:     matchesDefaultPattern,
		IsDefaultScope:      func(name string) bool { return name == DefaultScopeName },
	}
}

func matchesDefaultPattern(name string) bool {
	return defaultNamePattern.MatchString(name)
}
