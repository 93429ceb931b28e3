package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
	"github.com/terraconstructs/accessguard/internal/rbac/rbacerr"
)

// CreateAssignment requires the owning Resource and Role to already exist,
// then writes both twin rows in one batch. If both twin rows are already
// present this is a Conflict; if exactly one is present (a crash left a
// half-written state), the create proceeds and overwrites both rather than
// failing.
func (r *Repository) CreateAssignment(ctx context.Context, resourceName, roleName, principalID string) (model.Assignment, error) {
	if err := r.requireResource(ctx, "CreateAssignment", resourceName); err != nil {
		return model.Assignment{}, err
	}
	role, err := r.GetRole(ctx, resourceName, roleName)
	if err != nil {
		return model.Assignment{}, err
	}
	if role == nil {
		return model.Assignment{}, rbacerr.New(rbacerr.NotFound, "CreateAssignment", fmt.Errorf("role %q/%q not found", resourceName, roleName))
	}

	assignment := model.Assignment{ResourceName: resourceName, RoleName: roleName, PrincipalID: principalID, ETag: model.NewETag()}

	byResource, err := r.adapter.Get(ctx, assignment.ByResourceKey())
	if err != nil {
		return model.Assignment{}, rbacerr.FromKV("CreateAssignment", fmt.Errorf("get by-resource twin: %w", err))
	}
	byPrincipal, err := r.adapter.Get(ctx, assignment.ByPrincipalKey())
	if err != nil {
		return model.Assignment{}, rbacerr.FromKV("CreateAssignment", fmt.Errorf("get by-principal twin: %w", err))
	}
	if byResource != nil && byPrincipal != nil {
		return model.Assignment{}, rbacerr.New(rbacerr.Conflict, "CreateAssignment",
			fmt.Errorf("assignment %q/%q/%q already exists", resourceName, roleName, principalID))
	}

	ops := []kv.WriteOp{
		{Put: assignment.ToAttributesByResource()},
		{Put: assignment.ToAttributesByPrincipal()},
	}
	if err := r.adapter.BatchWrite(ctx, ops); err != nil {
		return model.Assignment{}, rbacerr.FromKV("CreateAssignment", fmt.Errorf("batch write assignment twins: %w", err))
	}

	diffs, derr := diffAgainstEmpty(model.AssignmentSchema(), assignment.Projection(), r.encryptor)
	if derr != nil {
		return model.Assignment{}, rbacerr.New(rbacerr.Internal, "CreateAssignment", derr)
	}
	resourceKey := assignment.ByResourceKey()
	if err := r.emit(ctx, model.SaveActionCreated, resourceKey.EntityName, resourceKey.SubjectName, diffs); err != nil {
		return assignment, err
	}
	return assignment, nil
}

// DeleteAssignment deletes both twin rows. When expectedETag is non-empty
// it gates the by-resource row's delete with an ETag precondition; the
// by-principal twin is always deleted unconditionally once the gated
// delete succeeds, since it carries no independent ETag of its own. When
// expectedETag is empty both rows are deleted via one batch. Deleting an
// absent assignment (including a half-written twin pair) is idempotent and
// emits no event.
func (r *Repository) DeleteAssignment(ctx context.Context, resourceName, roleName, principalID, expectedETag string) error {
	assignment := model.Assignment{ResourceName: resourceName, RoleName: roleName, PrincipalID: principalID}
	resourceKey := assignment.ByResourceKey()
	principalKey := assignment.ByPrincipalKey()

	// A reader that sees only one twin treats the assignment as absent, so
	// presence requires both rows. The deletes still run either way to clean
	// up any half-written state, but an absent assignment emits no event.
	byResource, err := r.adapter.Get(ctx, resourceKey)
	if err != nil {
		return rbacerr.FromKV("DeleteAssignment", fmt.Errorf("get by-resource twin: %w", err))
	}
	byPrincipal, err := r.adapter.Get(ctx, principalKey)
	if err != nil {
		return rbacerr.FromKV("DeleteAssignment", fmt.Errorf("get by-principal twin: %w", err))
	}
	present := byResource != nil && byPrincipal != nil

	if expectedETag != "" {
		precondition := kv.Precondition{Mode: kv.PreconditionETagEquals, ETag: expectedETag}
		if err := r.adapter.Delete(ctx, resourceKey, precondition); err != nil && !kv.IsNotFound(err) {
			return rbacerr.FromKV("DeleteAssignment", fmt.Errorf("delete by-resource twin: %w", err))
		}
		if err := r.adapter.Delete(ctx, principalKey, kv.Precondition{}); err != nil && !kv.IsNotFound(err) {
			return rbacerr.FromKV("DeleteAssignment", fmt.Errorf("delete by-principal twin: %w", err))
		}
	} else {
		ops := []kv.WriteOp{
			{Delete: &resourceKey},
			{Delete: &principalKey},
		}
		if err := r.adapter.BatchWrite(ctx, ops); err != nil {
			return rbacerr.FromKV("DeleteAssignment", fmt.Errorf("batch delete assignment twins: %w", err))
		}
	}
	if !present {
		return nil
	}
	return r.emit(ctx, model.SaveActionDeleted, resourceKey.EntityName, resourceKey.SubjectName, nil)
}

// GetPrincipalsForRole queries the by-resource Assignment rows for
// (resourceName, roleName) and returns the principal IDs, ascending.
func (r *Repository) GetPrincipalsForRole(ctx context.Context, resourceName, roleName string) ([]string, error) {
	rows, err := r.adapter.Query(ctx, kv.QueryInput{
		EntityName:       keys.OwnerPartition(resourceName),
		SubjectNameBegin: keys.AssignmentByResourcePrefix(roleName),
	})
	if err != nil {
		return nil, rbacerr.FromKV("GetPrincipalsForRole", fmt.Errorf("query assignments of %q/%q: %w", resourceName, roleName, err))
	}
	principals := make([]string, 0, len(rows))
	for _, row := range rows {
		if a, ok := model.AssignmentFromByResourceAttributes(row); ok {
			principals = append(principals, a.PrincipalID)
		}
	}
	sort.Strings(principals)
	return principals, nil
}

// ListAssignmentsByPrincipal returns every (resource, role) pair a
// principal is assigned to, across all resources. DeletePrincipal's
// cascade needs this, and the by-principal view already indexes for it.
func (r *Repository) ListAssignmentsByPrincipal(ctx context.Context, principalID string) ([]model.Assignment, error) {
	rows, err := r.adapter.Query(ctx, kv.QueryInput{
		EntityName:       keys.PrincipalPartition(principalID),
		SubjectNameBegin: keys.AssignmentByPrincipalPrefix(""),
	})
	if err != nil {
		return nil, rbacerr.FromKV("ListAssignmentsByPrincipal", fmt.Errorf("query assignments of %q: %w", principalID, err))
	}
	assignments := make([]model.Assignment, 0, len(rows))
	for _, row := range rows {
		if a, ok := model.AssignmentFromByPrincipalAttributes(row); ok {
			assignments = append(assignments, a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].ResourceName != assignments[j].ResourceName {
			return assignments[i].ResourceName < assignments[j].ResourceName
		}
		return assignments[i].RoleName < assignments[j].RoleName
	})
	return assignments, nil
}

// GetPrincipalAccess loads the Resource, restricts the principal's
// by-principal assignments to it, and intersects the resulting role names
// with Resource.roles -- assignments referencing a role that was since
// deleted are silently dropped. scope, when non-empty and not
// the configured default scope, narrows the returned scopes to just
// {scope}; otherwise every scope of the Resource is returned. A missing
// Resource returns (nil, nil).
func (r *Repository) GetPrincipalAccess(ctx context.Context, principalID, resourceName, scope string) (*PrincipalAccess, error) {
	view, err := r.GetResource(ctx, resourceName)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, nil
	}

	all, err := r.ListAssignmentsByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	liveRoles := make(map[string]struct{}, len(view.Roles))
	for _, roleName := range view.Roles {
		liveRoles[roleName] = struct{}{}
	}

	roleSet := make(map[string]struct{})
	for _, a := range all {
		if a.ResourceName != resourceName {
			continue
		}
		if _, ok := liveRoles[a.RoleName]; !ok {
			continue
		}
		roleSet[a.RoleName] = struct{}{}
	}
	roles := make([]string, 0, len(roleSet))
	for roleName := range roleSet {
		roles = append(roles, roleName)
	}
	sort.Strings(roles)

	scopes := view.Scopes
	if scope != "" && (r.names.IsDefaultScope == nil || !r.names.IsDefaultScope(scope)) {
		scopes = []string{scope}
	}

	return &PrincipalAccess{
		PrincipalID:  principalID,
		ResourceName: resourceName,
		Scopes:       scopes,
		Roles:        roles,
	}, nil
}

// DeletePrincipal scans every by-principal Assignment row for principalID
// and batch-deletes each alongside its by-resource twin. No assignments
// found is a no-op.
func (r *Repository) DeletePrincipal(ctx context.Context, principalID string) error {
	assignments, err := r.ListAssignmentsByPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}

	ops := make([]kv.WriteOp, 0, len(assignments)*2)
	for _, a := range assignments {
		resourceKey := a.ByResourceKey()
		principalKey := a.ByPrincipalKey()
		ops = append(ops,
			kv.WriteOp{Delete: &resourceKey},
			kv.WriteOp{Delete: &principalKey},
		)
	}
	if err := r.adapter.BatchWrite(ctx, ops); err != nil {
		return rbacerr.FromKV("DeletePrincipal", fmt.Errorf("batch delete assignments of %q: %w", principalID, err))
	}

	for _, a := range assignments {
		resourceKey := a.ByResourceKey()
		if err := r.emit(ctx, model.SaveActionDeleted, resourceKey.EntityName, resourceKey.SubjectName, nil); err != nil {
			return err
		}
	}
	return nil
}
