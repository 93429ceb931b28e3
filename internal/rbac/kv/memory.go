package kv

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Adapter backed by a guarded map, used by the CLI
// harness and the repository test suite in place of a real DynamoDB table.
// It implements the same conditional-write and prefix-scan semantics a real
// backend must provide, so tests written against it exercise the same
// invariants production code relies on.
type Memory struct {
	mu    sync.RWMutex
	items map[Key]Item
}

// NewMemory creates an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{items: make(map[Key]Item)}
}

func rowKey(item Item) Key {
	return Key{
		EntityName:  asString(item["entityName"]),
		SubjectName: asString(item["subjectName"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func (m *Memory) Put(ctx context.Context, item Item, precondition Precondition) error {
	if err := ctx.Err(); err != nil {
		return newError(KindCancelled, "Put", Key{}, err)
	}
	key := rowKey(item)

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.items[key]
	switch precondition.Mode {
	case PreconditionNotExists:
		if ok {
			return newError(KindPreconditionFailed, "Put", key, errConflict)
		}
	case PreconditionETagEquals:
		if !ok || asString(existing["eTag"]) != precondition.ETag {
			return newError(KindPreconditionFailed, "Put", key, errETagMismatch)
		}
	}

	stored := make(Item, len(item))
	for k, v := range item {
		stored[k] = v
	}
	if _, set := stored["eTag"]; !set {
		stored["eTag"] = uuid.NewString()
	}
	m.items[key] = stored
	return nil
}

func (m *Memory) Get(ctx context.Context, key Key) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindCancelled, "Get", key, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, key Key, precondition Precondition) error {
	if err := ctx.Err(); err != nil {
		return newError(KindCancelled, "Delete", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.items[key]
	switch precondition.Mode {
	case PreconditionNotExists:
		// Deletes never use NotExists; treat as a no-op guard.
	case PreconditionETagEquals:
		if !ok || asString(existing["eTag"]) != precondition.ETag {
			return newError(KindPreconditionFailed, "Delete", key, errETagMismatch)
		}
	}
	delete(m.items, key)
	return nil
}

func (m *Memory) BatchWrite(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return newError(KindCancelled, "BatchWrite", Key{}, err)
		}
		if op.Put != nil {
			if err := m.Put(ctx, op.Put, Precondition{}); err != nil {
				return err
			}
			continue
		}
		if op.Delete != nil {
			if err := m.Delete(ctx, *op.Delete, Precondition{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, in QueryInput) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindCancelled, "Query", Key{}, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Item
	for k, item := range m.items {
		if k.EntityName != in.EntityName {
			continue
		}
		if in.SubjectNameBegin != "" && !strings.HasPrefix(k.SubjectName, in.SubjectNameBegin) {
			continue
		}
		cp := make(Item, len(item))
		for kk, v := range item {
			cp[kk] = v
		}
		out = append(out, cp)
	}
	sortBySubject(out)
	return out, nil
}

func (m *Memory) Scan(ctx context.Context, in ScanInput) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindCancelled, "Scan", Key{}, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Item
	for k, item := range m.items {
		if in.Prefix != "" && !strings.HasPrefix(k.SubjectName, in.Prefix) {
			continue
		}
		cp := make(Item, len(item))
		for kk, v := range item {
			cp[kk] = v
		}
		out = append(out, cp)
	}
	sortBySubject(out)
	return out, nil
}

func sortBySubject(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		return asString(items[i]["subjectName"]) < asString(items[j]["subjectName"])
	})
}

var (
	errConflict     = conflictError{}
	errETagMismatch = etagMismatchError{}
)

type conflictError struct{}

func (conflictError) Error() string { return "item already exists" }

type etagMismatchError struct{}

func (etagMismatchError) Error() string { return "etag mismatch" }
