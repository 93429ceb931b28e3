package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
	"github.com/terraconstructs/accessguard/internal/rbac/rbacerr"
)

// Emitter binds a Change Tracker diff to a save action, producing an
// ItemEvent under the configured Policy, and persists it to the adapter.
type Emitter struct {
	adapter kv.Adapter
	policy  Policy
}

// New builds an Emitter writing events through adapter under policy.
func New(adapter kv.Adapter, policy Policy) *Emitter {
	return &Emitter{adapter: adapter, policy: policy}
}

// Emit constructs and persists an ItemEvent for one entity mutation.
// partitionKey/relatedID identify the row the event describes (its own
// composite key); diffs is the Change Tracker output for CREATE/UPDATE (nil
// for DELETE, which never carries attached changes). traceContext may be
// empty.
//
// Returns (nil, nil) when the policy is Disabled. A non-nil error is always
// *rbacerr.Error with Kind == EventPersistenceFailed -- the entity write
// itself already succeeded by the time Emit is called, so this failure is
// reported but never rolls back the entity.
func (e *Emitter) Emit(ctx context.Context, action model.SaveAction, partitionKey, relatedID, traceContext string, diffs []changetracker.Diff) (*model.ItemEvent, error) {
	if e.policy == Disabled {
		return nil, nil
	}

	event := model.ItemEvent{
		ID:           uuid.Must(uuid.NewV7()).String(),
		PartitionKey: partitionKey,
		RelatedID:    relatedID,
		SaveAction:   action,
		Timestamp:    time.Now().UTC(),
		TraceContext: traceContext,
	}
	if e.policy == AllChanges && action != model.SaveActionDeleted {
		event.Changes = diffs
	}

	item, err := event.ToAttributes()
	if err != nil {
		return nil, rbacerr.New(rbacerr.EventPersistenceFailed, "Emit", fmt.Errorf("serialize event: %w", err))
	}
	if err := e.adapter.Put(ctx, item, kv.Precondition{}); err != nil {
		return nil, rbacerr.New(rbacerr.EventPersistenceFailed, "Emit", err)
	}
	return &event, nil
}
