package model

import (
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
)

// Role is owned by a Resource and is the target of Principal assignments.
type Role struct {
	ResourceName string
	RoleName     string
	ETag         string
}

// Key returns the row's composite key.
func (r Role) Key() kv.Key {
	return kv.Key{EntityName: keys.OwnerPartition(r.ResourceName), SubjectName: keys.RoleSubject(r.RoleName)}
}

// ToAttributes serializes r to a KV item.
func (r Role) ToAttributes() kv.Item {
	item := kv.Item{
		"entityName":   keys.OwnerPartition(r.ResourceName),
		"subjectName":  keys.RoleSubject(r.RoleName),
		"resourceName": r.ResourceName,
		"roleName":     r.RoleName,
	}
	if r.ETag != "" {
		item["eTag"] = r.ETag
	}
	return item
}

// RoleFromAttributes reconstructs a Role, validating both entityName and
// subjectName match what ToAttributes would produce.
func RoleFromAttributes(item kv.Item) (Role, bool) {
	if item == nil {
		return Role{}, false
	}
	resourceName := asString(item["resourceName"])
	roleName := asString(item["roleName"])
	if asString(item["entityName"]) != keys.OwnerPartition(resourceName) {
		return Role{}, false
	}
	if asString(item["subjectName"]) != keys.RoleSubject(roleName) {
		return Role{}, false
	}
	return Role{ResourceName: resourceName, RoleName: roleName, ETag: asString(item["eTag"])}, true
}

// Projection returns r's JSON-shaped view for the Change Tracker.
func (r Role) Projection() map[string]any {
	return map[string]any{"resourceName": r.ResourceName, "roleName": r.RoleName}
}

// RoleSchema is Role's Change Tracker schema.
func RoleSchema() *changetracker.Node {
	return changetracker.Object(
		changetracker.Field{Name: "resourceName", Node: changetracker.Leaf(changetracker.Tracked)},
		changetracker.Field{Name: "roleName", Node: changetracker.Leaf(changetracker.Tracked)},
	)
}
