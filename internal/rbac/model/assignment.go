package model

import (
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
)

// Assignment binds a Principal to a Role under a Resource. It is stored as
// two independently-keyed twin rows (by-resource and by-principal views);
// both must exist for a reader to treat the assignment as present (the
// by-resource ETag is what ETag-aware delete callers check; see
// ByResourceKey).
type Assignment struct {
	ResourceName string
	RoleName     string
	PrincipalID  string
	ETag         string // by-resource row's ETag
}

// ByResourceKey is the composite key of the by-resource view row.
func (a Assignment) ByResourceKey() kv.Key {
	return kv.Key{
		EntityName:  keys.OwnerPartition(a.ResourceName),
		SubjectName: keys.AssignmentByResourceSubject(a.RoleName, a.PrincipalID),
	}
}

// ByPrincipalKey is the composite key of the by-principal view row.
func (a Assignment) ByPrincipalKey() kv.Key {
	return kv.Key{
		EntityName:  keys.PrincipalPartition(a.PrincipalID),
		SubjectName: keys.AssignmentByPrincipalSubject(a.ResourceName, a.RoleName),
	}
}

// ToAttributesByResource serializes the by-resource twin row.
func (a Assignment) ToAttributesByResource() kv.Item {
	item := kv.Item{
		"entityName":   keys.OwnerPartition(a.ResourceName),
		"subjectName":  keys.AssignmentByResourceSubject(a.RoleName, a.PrincipalID),
		"resourceName": a.ResourceName,
		"roleName":     a.RoleName,
		"principalId":  a.PrincipalID,
	}
	if a.ETag != "" {
		item["eTag"] = a.ETag
	}
	return item
}

// ToAttributesByPrincipal serializes the by-principal twin row.
func (a Assignment) ToAttributesByPrincipal() kv.Item {
	return kv.Item{
		"entityName":   keys.PrincipalPartition(a.PrincipalID),
		"subjectName":  keys.AssignmentByPrincipalSubject(a.ResourceName, a.RoleName),
		"resourceName": a.ResourceName,
		"roleName":     a.RoleName,
		"principalId":  a.PrincipalID,
	}
}

// AssignmentFromByResourceAttributes reconstructs an Assignment from its
// by-resource view row, validating entityName/subjectName consistency.
func AssignmentFromByResourceAttributes(item kv.Item) (Assignment, bool) {
	if item == nil {
		return Assignment{}, false
	}
	resourceName := asString(item["resourceName"])
	roleName := asString(item["roleName"])
	principalID := asString(item["principalId"])
	if asString(item["entityName"]) != keys.OwnerPartition(resourceName) {
		return Assignment{}, false
	}
	if asString(item["subjectName"]) != keys.AssignmentByResourceSubject(roleName, principalID) {
		return Assignment{}, false
	}
	return Assignment{
		ResourceName: resourceName,
		RoleName:     roleName,
		PrincipalID:  principalID,
		ETag:         asString(item["eTag"]),
	}, true
}

// AssignmentFromByPrincipalAttributes reconstructs an Assignment from its
// by-principal view row, validating entityName/subjectName consistency.
func AssignmentFromByPrincipalAttributes(item kv.Item) (Assignment, bool) {
	if item == nil {
		return Assignment{}, false
	}
	resourceName := asString(item["resourceName"])
	roleName := asString(item["roleName"])
	principalID := asString(item["principalId"])
	if asString(item["entityName"]) != keys.PrincipalPartition(principalID) {
		return Assignment{}, false
	}
	if asString(item["subjectName"]) != keys.AssignmentByPrincipalSubject(resourceName, roleName) {
		return Assignment{}, false
	}
	return Assignment{ResourceName: resourceName, RoleName: roleName, PrincipalID: principalID}, true
}

// Projection returns a's JSON-shaped view for the Change Tracker.
func (a Assignment) Projection() map[string]any {
	return map[string]any{
		"resourceName": a.ResourceName,
		"roleName":     a.RoleName,
		"principalId":  a.PrincipalID,
	}
}

// AssignmentSchema is Assignment's Change Tracker schema.
func AssignmentSchema() *changetracker.Node {
	return changetracker.Object(
		changetracker.Field{Name: "resourceName", Node: changetracker.Leaf(changetracker.Tracked)},
		changetracker.Field{Name: "roleName", Node: changetracker.Leaf(changetracker.Tracked)},
		changetracker.Field{Name: "principalId", Node: changetracker.Leaf(changetracker.Tracked)},
	)
}
