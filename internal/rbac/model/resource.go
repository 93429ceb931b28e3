// Package model maps the domain entities (Resource, Scope, Role,
// Assignment, ItemEvent) to and from kv.Item attribute maps, and exposes
// each type's Change Tracker schema. Construction from an attribute map is
// an explicit per-type function, not reflection, so FromAttributes stays a
// total function per entity kind.
package model

import (
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
)

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Resource is a protected artifact identified by ResourceName; its Scopes
// and Roles are materialized by prefix-scanning child rows, not stored here.
type Resource struct {
	ResourceName string
	ETag         string
}

// Key returns the row's composite key.
func (r Resource) Key() kv.Key {
	return kv.Key{EntityName: keys.ResourcePartition(), SubjectName: keys.ResourceSubject(r.ResourceName)}
}

// ToAttributes serializes r to a KV item.
func (r Resource) ToAttributes() kv.Item {
	item := kv.Item{
		"entityName":   keys.ResourcePartition(),
		"subjectName":  keys.ResourceSubject(r.ResourceName),
		"resourceName": r.ResourceName,
	}
	if r.ETag != "" {
		item["eTag"] = r.ETag
	}
	return item
}

// ResourceFromAttributes reconstructs a Resource, validating that the row's
// subjectName matches what ToAttributes would produce for resourceName.
// A mismatch (stale row, wrong type) returns ok=false rather than an error.
func ResourceFromAttributes(item kv.Item) (Resource, bool) {
	if item == nil {
		return Resource{}, false
	}
	name := asString(item["resourceName"])
	if asString(item["subjectName"]) != keys.ResourceSubject(name) {
		return Resource{}, false
	}
	return Resource{ResourceName: name, ETag: asString(item["eTag"])}, true
}

// Projection returns r's JSON-shaped view for the Change Tracker.
func (r Resource) Projection() map[string]any {
	return map[string]any{"resourceName": r.ResourceName}
}

// ResourceSchema is Resource's Change Tracker schema.
func ResourceSchema() *changetracker.Node {
	return changetracker.Object(
		changetracker.Field{Name: "resourceName", Node: changetracker.Leaf(changetracker.Tracked)},
	)
}
