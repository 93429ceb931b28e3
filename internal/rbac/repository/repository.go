// Package repository implements the RBAC Repository: the domain operations
// over Resources, Scopes, Roles, and Assignments, wiring the KV Adapter,
// Entity Mappers, Change Tracker, Event Emitter, and Validator Hooks
// together -- one method per operation, errors wrapped with fmt.Errorf, no
// logging at this layer.
package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
	"github.com/terraconstructs/accessguard/internal/rbac/concurrency"
	"github.com/terraconstructs/accessguard/internal/rbac/events"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/model"
	"github.com/terraconstructs/accessguard/internal/rbac/rbacerr"
	"github.com/terraconstructs/accessguard/internal/rbac/validate"
)

// Repository implements the RBAC domain operations over a KV Adapter. It is safe for concurrent use by many callers; it holds no
// mutable state of its own beyond its collaborators.
type Repository struct {
	adapter   kv.Adapter
	emitter   *events.Emitter
	names     validate.Names
	encryptor changetracker.Encryptor
}

// New builds a Repository. encryptor may be nil if no entity schema marks a
// field Encrypted; emitter governs whether/how ItemEvents are persisted.
func New(adapter kv.Adapter, emitter *events.Emitter, names validate.Names, encryptor changetracker.Encryptor) *Repository {
	return &Repository{adapter: adapter, emitter: emitter, names: names, encryptor: encryptor}
}

// ResourceView is the aggregate GetResource returns: a Resource plus its
// child Scope and Role names, both ascending.
type ResourceView struct {
	Name   string
	Scopes []string
	Roles  []string
}

// PrincipalAccess is what GetPrincipalAccess returns: the roles and scopes
// a principal has under one resource.
type PrincipalAccess struct {
	PrincipalID  string
	ResourceName string
	Scopes       []string
	Roles        []string
}

func (r *Repository) emit(ctx context.Context, action model.SaveAction, partitionKey, relatedID string, diffs []changetracker.Diff) error {
	if r.emitter == nil {
		return nil
	}
	if _, err := r.emitter.Emit(ctx, action, partitionKey, relatedID, "", diffs); err != nil {
		return err
	}
	return nil
}

// diffAgainstEmpty computes the Change Tracker diff of entity's projection
// against an empty baseline, for the event a CREATE emits.
func diffAgainstEmpty(schema *changetracker.Node, projection map[string]any, enc changetracker.Encryptor) ([]changetracker.Diff, error) {
	return changetracker.Compute(schema, nil, projection, enc)
}

// CreateResource validates name and puts the Resource row with a not_exists
// precondition; a row already present surfaces Conflict.
func (r *Repository) CreateResource(ctx context.Context, name string) (model.Resource, error) {
	if !r.names.IsValidResourceName(name) {
		return model.Resource{}, rbacerr.New(rbacerr.BadRequest, "CreateResource", fmt.Errorf("invalid resource name %q", name))
	}
	resource := model.Resource{ResourceName: name, ETag: model.NewETag()}
	if err := r.adapter.Put(ctx, resource.ToAttributes(), kv.Precondition{Mode: kv.PreconditionNotExists}); err != nil {
		if kv.IsPreconditionFailed(err) {
			return model.Resource{}, rbacerr.New(rbacerr.Conflict, "CreateResource", fmt.Errorf("resource %q already exists: %w", name, err))
		}
		return model.Resource{}, rbacerr.FromKV("CreateResource", fmt.Errorf("put resource %q: %w", name, err))
	}

	diffs, err := diffAgainstEmpty(model.ResourceSchema(), resource.Projection(), r.encryptor)
	if err != nil {
		return model.Resource{}, rbacerr.New(rbacerr.Internal, "CreateResource", err)
	}
	if err := r.emit(ctx, model.SaveActionCreated, resource.Key().EntityName, resource.Key().SubjectName, diffs); err != nil {
		return resource, err
	}
	return resource, nil
}

// GetResource reads the Resource row, then fans out prefix queries of its
// Scopes and Roles, returning both child lists sorted ascending. A missing
// Resource row returns (nil, nil).
func (r *Repository) GetResource(ctx context.Context, name string) (*ResourceView, error) {
	owner := keys.OwnerPartition(name)

	item, err := r.adapter.Get(ctx, model.Resource{ResourceName: name}.Key())
	if err != nil {
		return nil, rbacerr.FromKV("GetResource", fmt.Errorf("get resource %q: %w", name, err))
	}
	if item == nil {
		return nil, nil
	}
	if _, ok := model.ResourceFromAttributes(item); !ok {
		return nil, nil
	}

	var scopeRows, roleRows []kv.Item
	err = concurrency.FanOut(ctx,
		func(ctx context.Context) error {
			rows, qerr := r.adapter.Query(ctx, kv.QueryInput{EntityName: owner, SubjectNameBegin: keys.ScopePrefix()})
			if qerr != nil {
				return fmt.Errorf("query scopes of %q: %w", name, qerr)
			}
			scopeRows = rows
			return nil
		},
		func(ctx context.Context) error {
			rows, qerr := r.adapter.Query(ctx, kv.QueryInput{EntityName: owner, SubjectNameBegin: keys.RolePrefix()})
			if qerr != nil {
				return fmt.Errorf("query roles of %q: %w", name, qerr)
			}
			roleRows = rows
			return nil
		},
	)
	if err != nil {
		return nil, rbacerr.FromKV("GetResource", err)
	}

	view := &ResourceView{Name: name, Scopes: []string{}, Roles: []string{}}
	for _, row := range scopeRows {
		if s, ok := model.ScopeFromAttributes(row); ok {
			view.Scopes = append(view.Scopes, s.ScopeName)
		}
	}
	for _, row := range roleRows {
		if ro, ok := model.RoleFromAttributes(row); ok {
			view.Roles = append(view.Roles, ro.RoleName)
		}
	}
	sort.Strings(view.Scopes)
	sort.Strings(view.Roles)
	return view, nil
}

// GetResources scans the single Resource partition and returns every
// resource name, ascending.
func (r *Repository) GetResources(ctx context.Context) ([]string, error) {
	rows, err := r.adapter.Query(ctx, kv.QueryInput{EntityName: keys.ResourcePartition()})
	if err != nil {
		return nil, rbacerr.FromKV("GetResources", fmt.Errorf("query resources: %w", err))
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if res, ok := model.ResourceFromAttributes(row); ok {
			names = append(names, res.ResourceName)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteResource fans out four concurrent sub-tasks -- delete the Resource
// row, prefix-delete its Scopes, prefix-delete its Roles, and prefix-delete
// all of its Assignments in both views -- joining before returning. A
// Resource with no children is a no-op cascade, not an error. expectedETag,
// when non-empty, gates the Resource row's own delete with an ETag
// precondition; the cascade of children is unconditional. Deleting an
// already-absent Resource is idempotent and emits no event.
func (r *Repository) DeleteResource(ctx context.Context, name, expectedETag string) error {
	owner := keys.OwnerPartition(name)
	resourceKey := model.Resource{ResourceName: name}.Key()

	existing, err := r.adapter.Get(ctx, resourceKey)
	if err != nil {
		return rbacerr.FromKV("DeleteResource", fmt.Errorf("get resource %q: %w", name, err))
	}

	err = concurrency.FanOut(ctx,
		func(ctx context.Context) error {
			precondition := kv.Precondition{}
			if expectedETag != "" {
				precondition = kv.Precondition{Mode: kv.PreconditionETagEquals, ETag: expectedETag}
			}
			if delErr := r.adapter.Delete(ctx, resourceKey, precondition); delErr != nil && !kv.IsNotFound(delErr) {
				return fmt.Errorf("delete resource %q: %w", name, delErr)
			}
			return nil
		},
		func(ctx context.Context) error {
			return r.deleteByPrefix(ctx, owner, keys.ScopePrefix())
		},
		func(ctx context.Context) error {
			return r.deleteByPrefix(ctx, owner, keys.RolePrefix())
		},
		func(ctx context.Context) error {
			return r.deleteAssignmentsByResourcePrefix(ctx, name, keys.AssignmentByResourcePrefix(""))
		},
	)
	if err != nil {
		return rbacerr.FromKV("DeleteResource", err)
	}
	if existing == nil {
		return nil
	}

	// DELETE events never carry changes, so no diff is computed.
	return r.emit(ctx, model.SaveActionDeleted, resourceKey.EntityName, resourceKey.SubjectName, nil)
}

// deleteByPrefix prefix-scans owner/prefix and batch-deletes every matching
// row. No rows found is a no-op, not an error.
func (r *Repository) deleteByPrefix(ctx context.Context, owner, prefix string) error {
	rows, err := r.adapter.Query(ctx, kv.QueryInput{EntityName: owner, SubjectNameBegin: prefix})
	if err != nil {
		return fmt.Errorf("query %s%s: %w", owner, prefix, err)
	}
	if len(rows) == 0 {
		return nil
	}
	ops := make([]kv.WriteOp, 0, len(rows))
	for _, row := range rows {
		key := &kv.Key{EntityName: owner, SubjectName: asString(row["subjectName"])}
		ops = append(ops, kv.WriteOp{Delete: key})
	}
	if err := r.adapter.BatchWrite(ctx, ops); err != nil {
		return fmt.Errorf("batch delete %s%s: %w", owner, prefix, err)
	}
	return nil
}

// deleteAssignmentsByResourcePrefix prefix-scans the by-resource
// Assignment rows of a resource (optionally restricted to one role via
// resourcePrefix) and batch-deletes both twin rows of each -- the
// by-resource row found by the scan and its by-principal counterpart
// reconstructed from the sort key.
func (r *Repository) deleteAssignmentsByResourcePrefix(ctx context.Context, resourceName, resourcePrefix string) error {
	owner := keys.OwnerPartition(resourceName)
	rows, err := r.adapter.Query(ctx, kv.QueryInput{EntityName: owner, SubjectNameBegin: resourcePrefix})
	if err != nil {
		return fmt.Errorf("query assignments of %q: %w", resourceName, err)
	}
	if len(rows) == 0 {
		return nil
	}
	ops := make([]kv.WriteOp, 0, len(rows)*2)
	for _, row := range rows {
		subject := asString(row["subjectName"])
		roleName, principalID, ok := keys.ParseAssignmentByResourceSubject(subject)
		if !ok {
			continue
		}
		ops = append(ops,
			kv.WriteOp{Delete: &kv.Key{EntityName: owner, SubjectName: subject}},
			kv.WriteOp{Delete: &kv.Key{EntityName: keys.PrincipalPartition(principalID), SubjectName: keys.AssignmentByPrincipalSubject(resourceName, roleName)}},
		)
	}
	if err := r.adapter.BatchWrite(ctx, ops); err != nil {
		return fmt.Errorf("batch delete assignments of %q: %w", resourceName, err)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
