package model

import (
	"encoding/json"
	"time"

	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
)

// SaveAction is the kind of mutation an ItemEvent describes.
type SaveAction string

const (
	SaveActionCreated SaveAction = "CREATED"
	SaveActionUpdated SaveAction = "UPDATED"
	SaveActionDeleted SaveAction = "DELETED"
)

// ItemEvent is an immutable audit record of one CREATE/UPDATE/DELETE against
// a Resource, Scope, Role, or Assignment row.
type ItemEvent struct {
	ID           string
	PartitionKey string // entityName of the row the event describes
	RelatedID    string // subjectName of the row the event describes
	SaveAction   SaveAction
	Timestamp    time.Time
	TraceContext string
	Changes      []changetracker.Diff // nil when the policy suppresses diffs
}

// Key returns the event row's composite key, in the adjacent events
// partition keyed off the described row's own partition.
func (e ItemEvent) Key() kv.Key {
	return kv.Key{
		EntityName:  keys.EventPartition(e.PartitionKey),
		SubjectName: keys.EventSubject(e.Timestamp.UnixNano(), e.ID),
	}
}

// ToAttributes serializes e to a KV item. Changes is JSON-encoded since the
// KV item shape is a flat attribute map.
func (e ItemEvent) ToAttributes() (kv.Item, error) {
	item := kv.Item{
		"entityName":   keys.EventPartition(e.PartitionKey),
		"subjectName":  keys.EventSubject(e.Timestamp.UnixNano(), e.ID),
		"id":           e.ID,
		"partitionKey": e.PartitionKey,
		"relatedId":    e.RelatedID,
		"saveAction":   string(e.SaveAction),
		"timestamp":    e.Timestamp.Format(time.RFC3339Nano),
		"traceContext": e.TraceContext,
	}
	if e.Changes != nil {
		encoded, err := json.Marshal(e.Changes)
		if err != nil {
			return nil, err
		}
		item["changes"] = string(encoded)
	}
	return item, nil
}

// ItemEventFromAttributes reconstructs an ItemEvent, validating that
// subjectName matches what ToAttributes would produce for (timestamp, id).
func ItemEventFromAttributes(item kv.Item) (ItemEvent, bool) {
	if item == nil {
		return ItemEvent{}, false
	}
	id := asString(item["id"])
	partitionKey := asString(item["partitionKey"])
	timestamp, err := time.Parse(time.RFC3339Nano, asString(item["timestamp"]))
	if err != nil {
		return ItemEvent{}, false
	}
	if asString(item["entityName"]) != keys.EventPartition(partitionKey) {
		return ItemEvent{}, false
	}
	if asString(item["subjectName"]) != keys.EventSubject(timestamp.UnixNano(), id) {
		return ItemEvent{}, false
	}

	event := ItemEvent{
		ID:           id,
		PartitionKey: partitionKey,
		RelatedID:    asString(item["relatedId"]),
		SaveAction:   SaveAction(asString(item["saveAction"])),
		Timestamp:    timestamp,
		TraceContext: asString(item["traceContext"]),
	}
	if raw, ok := item["changes"].(string); ok && raw != "" {
		var changes []changetracker.Diff
		if err := json.Unmarshal([]byte(raw), &changes); err != nil {
			return ItemEvent{}, false
		}
		event.Changes = changes
	}
	return event, true
}
