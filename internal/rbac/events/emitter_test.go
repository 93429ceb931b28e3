package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/events"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
	"github.com/terraconstructs/accessguard/internal/rbac/rbacerr"
)

var sampleDiffs = []changetracker.Diff{{Path: "/roleName", OldValue: nil, NewValue: "admin"}}

func TestEmitDisabledPolicyIsNoop(t *testing.T) {
	adapter := kv.NewMemory()
	e := events.New(adapter, events.Disabled)

	got, err := e.Emit(context.Background(), model.SaveActionCreated, "RESOURCE#R1", "ROLE#admin", "", sampleDiffs)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmitNoChangesPolicyAlwaysNilsChanges(t *testing.T) {
	adapter := kv.NewMemory()
	e := events.New(adapter, events.NoChanges)

	got, err := e.Emit(context.Background(), model.SaveActionCreated, "RESOURCE#R1", "ROLE#admin", "", sampleDiffs)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Changes)
}

func TestEmitAllChangesPolicyAttachesDiffsExceptOnDelete(t *testing.T) {
	adapter := kv.NewMemory()
	e := events.New(adapter, events.AllChanges)

	created, err := e.Emit(context.Background(), model.SaveActionCreated, "RESOURCE#R1", "ROLE#admin", "", sampleDiffs)
	require.NoError(t, err)
	assert.Equal(t, sampleDiffs, created.Changes)

	deleted, err := e.Emit(context.Background(), model.SaveActionDeleted, "RESOURCE#R1", "ROLE#admin", "", sampleDiffs)
	require.NoError(t, err)
	assert.Nil(t, deleted.Changes)
}

type failingAdapter struct {
	kv.Adapter
}

func (failingAdapter) Put(ctx context.Context, item kv.Item, precondition kv.Precondition) error {
	return assert.AnError
}

func TestEmitSurfacesEventPersistenceFailedWithoutPanicking(t *testing.T) {
	e := events.New(failingAdapter{}, events.AllChanges)

	_, err := e.Emit(context.Background(), model.SaveActionCreated, "RESOURCE#R1", "ROLE#admin", "", sampleDiffs)
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.EventPersistenceFailed))
}
