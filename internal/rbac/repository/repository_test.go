package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/events"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
	"github.com/terraconstructs/accessguard/internal/rbac/rbacerr"
	"github.com/terraconstructs/accessguard/internal/rbac/repository"
	"github.com/terraconstructs/accessguard/internal/rbac/validate"
)

func newTestRepository() (*repository.Repository, kv.Adapter) {
	adapter := kv.NewMemory()
	emitter := events.New(adapter, events.AllChanges)
	repo := repository.New(adapter, emitter, validate.Default(), nil)
	return repo, adapter
}

func TestCreateAndListResources(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "api://a")
	require.NoError(t, err)
	_, err = repo.CreateResource(ctx, "api://b")
	require.NoError(t, err)

	names, err := repo.GetResources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api://a", "api://b"}, names)
}

func TestCreateResourceTwiceIsConflict(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "api://a")
	require.NoError(t, err)
	_, err = repo.CreateResource(ctx, "api://a")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.Conflict))
}

func TestAssignmentRoundTrip(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	principals, err := repo.GetPrincipalsForRole(ctx, "R1", "reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:p1"}, principals)

	access, err := repo.GetPrincipalAccess(ctx, "arn:p1", "R1", "")
	require.NoError(t, err)
	require.NotNil(t, access)
	assert.Equal(t, "arn:p1", access.PrincipalID)
	assert.Equal(t, "R1", access.ResourceName)
	assert.Equal(t, []string{}, access.Scopes)
	assert.Equal(t, []string{"reader"}, access.Roles)
}

func TestCascadingDeleteResource(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateScope(ctx, "R1", "prod")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteResource(ctx, "R1", ""))

	view, err := repo.GetResource(ctx, "R1")
	require.NoError(t, err)
	assert.Nil(t, view)

	principals, err := repo.GetPrincipalsForRole(ctx, "R1", "reader")
	require.NoError(t, err)
	assert.Empty(t, principals)

	access, err := repo.GetPrincipalAccess(ctx, "arn:p1", "R1", "")
	require.NoError(t, err)
	assert.Nil(t, access)
}

func TestDeleteResourceIsIdempotent(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	require.NoError(t, repo.DeleteResource(ctx, "R1", ""))
	require.NoError(t, repo.DeleteResource(ctx, "R1", ""))
}

func TestDeleteRoleCascadesAssignments(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRole(ctx, "R1", "reader", ""))

	principals, err := repo.GetPrincipalsForRole(ctx, "R1", "reader")
	require.NoError(t, err)
	assert.Empty(t, principals)

	assignments, err := repo.ListAssignmentsByPrincipal(ctx, "arn:p1")
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestCreateScopeAndRoleRequireResource(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateScope(ctx, "missing", "prod")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.NotFound))

	_, err = repo.CreateRole(ctx, "missing", "reader")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.NotFound))
}

func TestCreateAssignmentRequiresRole(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)

	_, err = repo.CreateAssignment(ctx, "R1", "missing-role", "arn:p1")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.NotFound))
}

func TestGetPrincipalAccessWithNonDefaultScope(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateScope(ctx, "R1", "prod")
	require.NoError(t, err)
	_, err = repo.CreateScope(ctx, "R1", "staging")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	access, err := repo.GetPrincipalAccess(ctx, "arn:p1", "R1", "prod")
	require.NoError(t, err)
	require.NotNil(t, access)
	assert.Equal(t, []string{"prod"}, access.Scopes)

	access, err = repo.GetPrincipalAccess(ctx, "arn:p1", "R1", validate.DefaultScopeName)
	require.NoError(t, err)
	require.NotNil(t, access)
	assert.Equal(t, []string{"prod", "staging"}, access.Scopes)
}

func TestDeletePrincipalRemovesAllAssignments(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateResource(ctx, "R2")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R2", "writer")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R2", "writer", "arn:p1")
	require.NoError(t, err)

	require.NoError(t, repo.DeletePrincipal(ctx, "arn:p1"))

	principals, err := repo.GetPrincipalsForRole(ctx, "R1", "reader")
	require.NoError(t, err)
	assert.Empty(t, principals)
	principals, err = repo.GetPrincipalsForRole(ctx, "R2", "writer")
	require.NoError(t, err)
	assert.Empty(t, principals)
}

func TestCreateAssignmentTwiceIsConflict(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.Conflict))
}

func TestBadRequestOnInvalidNames(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.BadRequest))
}

// eventsUnder reads back every ItemEvent persisted for rows whose
// entityName is sourcePartition, in chronological order.
func eventsUnder(t *testing.T, adapter kv.Adapter, sourcePartition string) []model.ItemEvent {
	t.Helper()
	rows, err := adapter.Query(context.Background(), kv.QueryInput{
		EntityName:       keys.EventPartition(sourcePartition),
		SubjectNameBegin: keys.EventPrefix(),
	})
	require.NoError(t, err)
	out := make([]model.ItemEvent, 0, len(rows))
	for _, row := range rows {
		event, ok := model.ItemEventFromAttributes(row)
		require.True(t, ok)
		out = append(out, event)
	}
	return out
}

func TestCreateRoleEventCarriesRoleNameDiff(t *testing.T) {
	repo, adapter := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R2")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R2", "admin")
	require.NoError(t, err)

	resourceEvents := eventsUnder(t, adapter, keys.ResourcePartition())
	require.Len(t, resourceEvents, 1)
	assert.Equal(t, model.SaveActionCreated, resourceEvents[0].SaveAction)

	roleEvents := eventsUnder(t, adapter, keys.OwnerPartition("R2"))
	require.Len(t, roleEvents, 1)
	assert.Equal(t, model.SaveActionCreated, roleEvents[0].SaveAction)
	assert.Contains(t, roleEvents[0].Changes,
		changetracker.Diff{Path: "/roleName", OldValue: nil, NewValue: "admin"})
	assert.Contains(t, roleEvents[0].Changes,
		changetracker.Diff{Path: "/resourceName", OldValue: nil, NewValue: "R2"})
}

func TestDeleteOfAbsentResourceEmitsNoEvent(t *testing.T) {
	repo, adapter := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	require.NoError(t, repo.DeleteResource(ctx, "R1", ""))

	after := len(eventsUnder(t, adapter, keys.ResourcePartition()))
	require.NoError(t, repo.DeleteResource(ctx, "R1", ""))
	assert.Equal(t, after, len(eventsUnder(t, adapter, keys.ResourcePartition())))
}

func TestDeleteOfAbsentAssignmentEmitsNoEvent(t *testing.T) {
	repo, adapter := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAssignment(ctx, "R1", "reader", "arn:p1", ""))
	after := len(eventsUnder(t, adapter, keys.OwnerPartition("R1")))
	require.NoError(t, repo.DeleteAssignment(ctx, "R1", "reader", "arn:p1", ""))
	assert.Equal(t, after, len(eventsUnder(t, adapter, keys.OwnerPartition("R1"))))
}

func TestDeleteAssignmentWithStaleETagFailsPrecondition(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)

	err = repo.DeleteAssignment(ctx, "R1", "reader", "arn:p1", "stale-etag")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.PreconditionFailed))
}

func TestCreateStampsETagOnEveryEntity(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	resource, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)
	assert.NotEmpty(t, resource.ETag)

	role, err := repo.CreateRole(ctx, "R1", "reader")
	require.NoError(t, err)
	assert.NotEmpty(t, role.ETag)

	scope, err := repo.CreateScope(ctx, "R1", "prod")
	require.NoError(t, err)
	assert.NotEmpty(t, scope.ETag)

	a, err := repo.CreateAssignment(ctx, "R1", "reader", "arn:p1")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ETag)

	got, err := repo.GetRole(ctx, "R1", "reader")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, role.ETag, got.ETag)

	require.NoError(t, repo.DeleteAssignment(ctx, "R1", "reader", "arn:p1", a.ETag))
	require.NoError(t, repo.DeleteScope(ctx, "R1", "prod", scope.ETag))
	require.NoError(t, repo.DeleteRole(ctx, "R1", "reader", role.ETag))
	require.NoError(t, repo.DeleteResource(ctx, "R1", resource.ETag))

	view, err := repo.GetResource(ctx, "R1")
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestDeleteResourceWithStaleETagFailsPrecondition(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	resource, err := repo.CreateResource(ctx, "R1")
	require.NoError(t, err)

	err = repo.DeleteResource(ctx, "R1", "stale-etag")
	require.Error(t, err)
	assert.True(t, rbacerr.Is(err, rbacerr.PreconditionFailed))

	view, err := repo.GetResource(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, view, "resource row survives a failed conditional delete")

	require.NoError(t, repo.DeleteResource(ctx, "R1", resource.ETag))
}
