package repository

import (
	"context"
	"fmt"

	"github.com/terraconstructs/accessguard/internal/rbac/concurrency"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
	"github.com/terraconstructs/accessguard/internal/rbac/rbacerr"
)

// requireResource confirms name has a live Resource row, surfacing NotFound
// per invariant 1 ("a Resource row MUST exist before any Scope, Role, or
// Assignment referencing it is created").
func (r *Repository) requireResource(ctx context.Context, op, name string) error {
	item, err := r.adapter.Get(ctx, model.Resource{ResourceName: name}.Key())
	if err != nil {
		return rbacerr.FromKV(op, fmt.Errorf("get resource %q: %w", name, err))
	}
	if item == nil {
		return rbacerr.New(rbacerr.NotFound, op, fmt.Errorf("resource %q not found", name))
	}
	if _, ok := model.ResourceFromAttributes(item); !ok {
		return rbacerr.New(rbacerr.NotFound, op, fmt.Errorf("resource %q not found", name))
	}
	return nil
}

// CreateScope requires the owning Resource to already exist, then puts the
// Scope row with a not_exists precondition.
func (r *Repository) CreateScope(ctx context.Context, resourceName, scopeName string) (model.Scope, error) {
	if !r.names.IsValidScopeName(scopeName) {
		return model.Scope{}, rbacerr.New(rbacerr.BadRequest, "CreateScope", fmt.Errorf("invalid scope name %q", scopeName))
	}
	if err := r.requireResource(ctx, "CreateScope", resourceName); err != nil {
		return model.Scope{}, err
	}

	scope := model.Scope{ResourceName: resourceName, ScopeName: scopeName, ETag: model.NewETag()}
	if err := r.adapter.Put(ctx, scope.ToAttributes(), kv.Precondition{Mode: kv.PreconditionNotExists}); err != nil {
		if kv.IsPreconditionFailed(err) {
			return model.Scope{}, rbacerr.New(rbacerr.Conflict, "CreateScope", fmt.Errorf("scope %q/%q already exists: %w", resourceName, scopeName, err))
		}
		return model.Scope{}, rbacerr.FromKV("CreateScope", fmt.Errorf("put scope %q/%q: %w", resourceName, scopeName, err))
	}

	diffs, err := diffAgainstEmpty(model.ScopeSchema(), scope.Projection(), r.encryptor)
	if err != nil {
		return model.Scope{}, rbacerr.New(rbacerr.Internal, "CreateScope", err)
	}
	if err := r.emit(ctx, model.SaveActionCreated, scope.Key().EntityName, scope.Key().SubjectName, diffs); err != nil {
		return scope, err
	}
	return scope, nil
}

// GetScope reads a single Scope row. A missing or mistyped row returns
// (nil, nil).
func (r *Repository) GetScope(ctx context.Context, resourceName, scopeName string) (*model.Scope, error) {
	key := kv.Key{EntityName: keys.OwnerPartition(resourceName), SubjectName: keys.ScopeSubject(scopeName)}
	item, err := r.adapter.Get(ctx, key)
	if err != nil {
		return nil, rbacerr.FromKV("GetScope", fmt.Errorf("get scope %q/%q: %w", resourceName, scopeName, err))
	}
	if item == nil {
		return nil, nil
	}
	scope, ok := model.ScopeFromAttributes(item)
	if !ok {
		return nil, nil
	}
	return &scope, nil
}

// DeleteScope removes the Scope row only; scopes don't gate assignments so
// no cascade runs. expectedETag, when non-empty, gates the delete with an
// ETag precondition. Deleting an already-absent Scope is idempotent and
// emits no event.
func (r *Repository) DeleteScope(ctx context.Context, resourceName, scopeName, expectedETag string) error {
	key := kv.Key{EntityName: keys.OwnerPartition(resourceName), SubjectName: keys.ScopeSubject(scopeName)}
	existing, err := r.adapter.Get(ctx, key)
	if err != nil {
		return rbacerr.FromKV("DeleteScope", fmt.Errorf("get scope %q/%q: %w", resourceName, scopeName, err))
	}

	precondition := kv.Precondition{}
	if expectedETag != "" {
		precondition = kv.Precondition{Mode: kv.PreconditionETagEquals, ETag: expectedETag}
	}
	if err := r.adapter.Delete(ctx, key, precondition); err != nil && !kv.IsNotFound(err) {
		return rbacerr.FromKV("DeleteScope", fmt.Errorf("delete scope %q/%q: %w", resourceName, scopeName, err))
	}
	if existing == nil {
		return nil
	}
	return r.emit(ctx, model.SaveActionDeleted, key.EntityName, key.SubjectName, nil)
}

// CreateRole requires the owning Resource to already exist, then puts the
// Role row with a not_exists precondition.
func (r *Repository) CreateRole(ctx context.Context, resourceName, roleName string) (model.Role, error) {
	if !r.names.IsValidRoleName(roleName) {
		return model.Role{}, rbacerr.New(rbacerr.BadRequest, "CreateRole", fmt.Errorf("invalid role name %q", roleName))
	}
	if err := r.requireResource(ctx, "CreateRole", resourceName); err != nil {
		return model.Role{}, err
	}

	role := model.Role{ResourceName: resourceName, RoleName: roleName, ETag: model.NewETag()}
	if err := r.adapter.Put(ctx, role.ToAttributes(), kv.Precondition{Mode: kv.PreconditionNotExists}); err != nil {
		if kv.IsPreconditionFailed(err) {
			return model.Role{}, rbacerr.New(rbacerr.Conflict, "CreateRole", fmt.Errorf("role %q/%q already exists: %w", resourceName, roleName, err))
		}
		return model.Role{}, rbacerr.FromKV("CreateRole", fmt.Errorf("put role %q/%q: %w", resourceName, roleName, err))
	}

	diffs, err := diffAgainstEmpty(model.RoleSchema(), role.Projection(), r.encryptor)
	if err != nil {
		return model.Role{}, rbacerr.New(rbacerr.Internal, "CreateRole", err)
	}
	if err := r.emit(ctx, model.SaveActionCreated, role.Key().EntityName, role.Key().SubjectName, diffs); err != nil {
		return role, err
	}
	return role, nil
}

// GetRole reads a single Role row. Every other entity kind has a matching
// single-item getter, and CreateAssignment needs this to validate the role
// exists before writing.
func (r *Repository) GetRole(ctx context.Context, resourceName, roleName string) (*model.Role, error) {
	key := kv.Key{EntityName: keys.OwnerPartition(resourceName), SubjectName: keys.RoleSubject(roleName)}
	item, err := r.adapter.Get(ctx, key)
	if err != nil {
		return nil, rbacerr.FromKV("GetRole", fmt.Errorf("get role %q/%q: %w", resourceName, roleName, err))
	}
	if item == nil {
		return nil, nil
	}
	role, ok := model.RoleFromAttributes(item)
	if !ok {
		return nil, nil
	}
	return &role, nil
}

// DeleteRole deletes the Role row and fans out a concurrent prefix-delete
// of every Assignment (both views) referencing (resourceName, roleName).
// expectedETag, when non-empty, gates the Role row's own delete. Deleting
// an already-absent Role is idempotent and emits no event.
func (r *Repository) DeleteRole(ctx context.Context, resourceName, roleName, expectedETag string) error {
	key := kv.Key{EntityName: keys.OwnerPartition(resourceName), SubjectName: keys.RoleSubject(roleName)}
	existing, err := r.adapter.Get(ctx, key)
	if err != nil {
		return rbacerr.FromKV("DeleteRole", fmt.Errorf("get role %q/%q: %w", resourceName, roleName, err))
	}

	err = concurrency.FanOut(ctx,
		func(ctx context.Context) error {
			precondition := kv.Precondition{}
			if expectedETag != "" {
				precondition = kv.Precondition{Mode: kv.PreconditionETagEquals, ETag: expectedETag}
			}
			if delErr := r.adapter.Delete(ctx, key, precondition); delErr != nil && !kv.IsNotFound(delErr) {
				return fmt.Errorf("delete role %q/%q: %w", resourceName, roleName, delErr)
			}
			return nil
		},
		func(ctx context.Context) error {
			return r.deleteAssignmentsByResourcePrefix(ctx, resourceName, keys.AssignmentByResourcePrefix(roleName))
		},
	)
	if err != nil {
		return rbacerr.FromKV("DeleteRole", err)
	}
	if existing == nil {
		return nil
	}
	return r.emit(ctx, model.SaveActionDeleted, key.EntityName, key.SubjectName, nil)
}
