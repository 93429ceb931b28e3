package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
)

func TestResourceRoundTrip(t *testing.T) {
	r := model.Resource{ResourceName: "api://a", ETag: "etag-1"}
	got, ok := model.ResourceFromAttributes(r.ToAttributes())
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestResourceFromAttributesRejectsMismatch(t *testing.T) {
	item := model.Resource{ResourceName: "api://a"}.ToAttributes()
	item["subjectName"] = "SCOPE#prod"
	_, ok := model.ResourceFromAttributes(item)
	assert.False(t, ok)
}

func TestScopeRoundTrip(t *testing.T) {
	s := model.Scope{ResourceName: "R1", ScopeName: "prod", ETag: "etag-2"}
	got, ok := model.ScopeFromAttributes(s.ToAttributes())
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestRoleRoundTrip(t *testing.T) {
	r := model.Role{ResourceName: "R1", RoleName: "reader", ETag: "etag-3"}
	got, ok := model.RoleFromAttributes(r.ToAttributes())
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestAssignmentTwinRoundTrip(t *testing.T) {
	a := model.Assignment{ResourceName: "R1", RoleName: "reader", PrincipalID: "arn:p1", ETag: "etag-4"}

	byResource, ok := model.AssignmentFromByResourceAttributes(a.ToAttributesByResource())
	require.True(t, ok)
	assert.Equal(t, a, byResource)

	byPrincipal, ok := model.AssignmentFromByPrincipalAttributes(a.ToAttributesByPrincipal())
	require.True(t, ok)
	assert.Equal(t, model.Assignment{ResourceName: "R1", RoleName: "reader", PrincipalID: "arn:p1"}, byPrincipal)
}

func TestItemEventRoundTrip(t *testing.T) {
	e := model.ItemEvent{
		ID:           "evt-1",
		PartitionKey: "RESOURCE#R1",
		RelatedID:    "ROLE#reader",
		SaveAction:   model.SaveActionCreated,
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TraceContext: "trace-1",
		Changes: []changetracker.Diff{
			{Path: "/roleName", OldValue: nil, NewValue: "reader"},
		},
	}
	item, err := e.ToAttributes()
	require.NoError(t, err)

	got, ok := model.ItemEventFromAttributes(item)
	require.True(t, ok)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.SaveAction, got.SaveAction)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, e.Changes, got.Changes)
}

func TestItemEventRoundTripNilChanges(t *testing.T) {
	e := model.ItemEvent{
		ID:           "evt-2",
		PartitionKey: "RESOURCE#R1",
		SaveAction:   model.SaveActionDeleted,
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	item, err := e.ToAttributes()
	require.NoError(t, err)

	got, ok := model.ItemEventFromAttributes(item)
	require.True(t, ok)
	assert.Nil(t, got.Changes)
}
