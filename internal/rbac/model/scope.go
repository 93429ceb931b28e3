package model

import (
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
)

// Scope is an authorization boundary owned by a Resource.
type Scope struct {
	ResourceName string
	ScopeName    string
	ETag         string
}

// Key returns the row's composite key.
func (s Scope) Key() kv.Key {
	return kv.Key{EntityName: keys.OwnerPartition(s.ResourceName), SubjectName: keys.ScopeSubject(s.ScopeName)}
}

// ToAttributes serializes s to a KV item.
func (s Scope) ToAttributes() kv.Item {
	item := kv.Item{
		"entityName":   keys.OwnerPartition(s.ResourceName),
		"subjectName":  keys.ScopeSubject(s.ScopeName),
		"resourceName": s.ResourceName,
		"scopeName":    s.ScopeName,
	}
	if s.ETag != "" {
		item["eTag"] = s.ETag
	}
	return item
}

// ScopeFromAttributes reconstructs a Scope, validating both entityName and
// subjectName match what ToAttributes would produce.
func ScopeFromAttributes(item kv.Item) (Scope, bool) {
	if item == nil {
		return Scope{}, false
	}
	resourceName := asString(item["resourceName"])
	scopeName := asString(item["scopeName"])
	if asString(item["entityName"]) != keys.OwnerPartition(resourceName) {
		return Scope{}, false
	}
	if asString(item["subjectName"]) != keys.ScopeSubject(scopeName) {
		return Scope{}, false
	}
	return Scope{ResourceName: resourceName, ScopeName: scopeName, ETag: asString(item["eTag"])}, true
}

// Projection returns s's JSON-shaped view for the Change Tracker.
func (s Scope) Projection() map[string]any {
	return map[string]any{"resourceName": s.ResourceName, "scopeName": s.ScopeName}
}

// ScopeSchema is Scope's Change Tracker schema.
func ScopeSchema() *changetracker.Node {
	return changetracker.Object(
		changetracker.Field{Name: "resourceName", Node: changetracker.Leaf(changetracker.Tracked)},
		changetracker.Field{Name: "scopeName", Node: changetracker.Leaf(changetracker.Tracked)},
	)
}
