// Package keys formats and parses the composite partition/sort keys the RBAC
// core stores rows under. Every function here is pure and total: given valid
// names it never errors, and callers never build a key string by hand.
package keys

import (
	"fmt"
	"strings"
)

const (
	resourcePartition        = "RESOURCE#"
	principalPartitionPrefix = "PRINCIPAL#"
	eventPartitionPrefix     = "EVENT#"

	scopeSubjectPrefix              = "SCOPE#"
	roleSubjectPrefix               = "ROLE#"
	assignmentByResourceSubjectPfx  = "ASSIGNMENT#ROLE#"
	assignmentByPrincipalSubjectPfx = "ASSIGNMENT#RESOURCE#"
	eventSubjectPrefix              = "EVENT#"
)

// ResourcePartition is the fixed entityName every Resource row is stored
// under: "RESOURCE#". GetResources scans this single partition.
func ResourcePartition() string { return resourcePartition }

// ResourceSubject is the sort key for a Resource row under ResourcePartition.
func ResourceSubject(resourceName string) string {
	return resourcePartition + resourceName
}

// OwnerPartition is the entityName every Scope, Role, and by-resource
// Assignment row lives under: the owning resource's own partition.
func OwnerPartition(resourceName string) string {
	return resourcePartition + resourceName
}

// ScopeSubject is the sort key for a Scope row within OwnerPartition(resourceName).
func ScopeSubject(scopeName string) string {
	return scopeSubjectPrefix + scopeName
}

// ScopePrefix is the begins_with filter matching every Scope row of a resource.
func ScopePrefix() string { return scopeSubjectPrefix }

// RoleSubject is the sort key for a Role row within OwnerPartition(resourceName).
func RoleSubject(roleName string) string {
	return roleSubjectPrefix + roleName
}

// RolePrefix is the begins_with filter matching every Role row of a resource.
func RolePrefix() string { return roleSubjectPrefix }

// AssignmentByResourceSubject is the sort key for the by-resource view of an
// Assignment, stored within OwnerPartition(resourceName):
// ASSIGNMENT#ROLE#<roleName>#PRINCIPAL#<principalId>.
func AssignmentByResourceSubject(roleName, principalID string) string {
	return assignmentByResourceSubjectPfx + roleName + "#PRINCIPAL#" + principalID
}

// AssignmentByResourcePrefix is the begins_with filter matching every
// by-resource Assignment row for a given role, or (roleName == "") every
// by-resource Assignment row on the resource regardless of role.
func AssignmentByResourcePrefix(roleName string) string {
	if roleName == "" {
		return assignmentByResourceSubjectPfx
	}
	return assignmentByResourceSubjectPfx + roleName + "#PRINCIPAL#"
}

// ParseAssignmentByResourceSubject extracts (roleName, principalID) from a
// by-resource Assignment sort key. ok is false if subject isn't shaped like
// one -- the cascading assignment delete relies on this to skip malformed
// rows rather than panicking on them.
func ParseAssignmentByResourceSubject(subject string) (roleName, principalID string, ok bool) {
	rest, found := strings.CutPrefix(subject, assignmentByResourceSubjectPfx)
	if !found {
		return "", "", false
	}
	idx := strings.Index(rest, "#PRINCIPAL#")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len("#PRINCIPAL#"):], true
}

// PrincipalPartition is the entityName every by-principal Assignment row for
// principalID lives under: "PRINCIPAL#<principalId>".
func PrincipalPartition(principalID string) string {
	return principalPartitionPrefix + principalID
}

// AssignmentByPrincipalSubject is the sort key for the by-principal view of
// an Assignment, stored within PrincipalPartition(principalID):
// ASSIGNMENT#RESOURCE#<resourceName>#ROLE#<roleName>.
func AssignmentByPrincipalSubject(resourceName, roleName string) string {
	return assignmentByPrincipalSubjectPfx + resourceName + "#ROLE#" + roleName
}

// AssignmentByPrincipalPrefix is the begins_with filter matching every
// by-principal Assignment row for a principal, optionally restricted to one
// resource when resourceName != "".
func AssignmentByPrincipalPrefix(resourceName string) string {
	if resourceName == "" {
		return assignmentByPrincipalSubjectPfx
	}
	return assignmentByPrincipalSubjectPfx + resourceName + "#ROLE#"
}

// ParseAssignmentByPrincipalSubject extracts (resourceName, roleName) from a
// by-principal Assignment sort key. ok is false if subject isn't shaped like
// one.
func ParseAssignmentByPrincipalSubject(subject string) (resourceName, roleName string, ok bool) {
	rest, found := strings.CutPrefix(subject, assignmentByPrincipalSubjectPfx)
	if !found {
		return "", "", false
	}
	idx := strings.Index(rest, "#ROLE#")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len("#ROLE#"):], true
}

// EventPartition is the entityName every ItemEvent describing a row under
// sourcePartitionKey lives under, in an adjacent events partition of the
// same table.
func EventPartition(sourcePartitionKey string) string {
	return eventPartitionPrefix + sourcePartitionKey
}

// EventSubject is the sort key for an ItemEvent row: zero-padded nanosecond
// timestamp then id, so begins_with scans of an entity's events naturally
// return them in chronological order.
func EventSubject(timestampUnixNano int64, id string) string {
	return fmt.Sprintf("%s%020d#%s", eventSubjectPrefix, timestampUnixNano, id)
}

// EventPrefix is the begins_with filter matching every event row under a
// partition.
func EventPrefix() string { return eventSubjectPrefix }
