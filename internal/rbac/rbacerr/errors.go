// Package rbacerr defines the RBAC core's error taxonomy. Repository
// methods return *Error so callers branch on Kind instead of string-
// matching or depending on the underlying KV adapter's error shape.
package rbacerr

import (
	"errors"
	"fmt"

	"github.com/terraconstructs/accessguard/internal/rbac/kv"
)

// Kind is the small, closed set of failure categories the repository
// surfaces.
type Kind int

const (
	// BadRequest means invalid name or malformed input; not retried.
	BadRequest Kind = iota
	// NotFound means a required parent entity was missing.
	NotFound
	// Conflict means a not_exists precondition failed (create race).
	Conflict
	// PreconditionFailed means an ETag mismatch on update/delete.
	PreconditionFailed
	// Unavailable means the backend exhausted its retry budget.
	Unavailable
	// Cancelled means the caller's context was cancelled.
	Cancelled
	// EventPersistenceFailed means the entity write succeeded but the
	// event write did not; non-fatal to the entity's state.
	EventPersistenceFailed
	// Internal covers unexpected mapper/serialization errors.
	Internal
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "BadRequest"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case PreconditionFailed:
		return "PreconditionFailed"
	case Unavailable:
		return "Unavailable"
	case Cancelled:
		return "Cancelled"
	case EventPersistenceFailed:
		return "EventPersistenceFailed"
	default:
		return "Internal"
	}
}

// Error is the repository-level error type.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rbac: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("rbac: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err's Kind matches kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// FromKV translates a kv.Error (or any error it wraps) into the repository
// taxonomy. A nil kv.Kind match falls back to Internal.
func FromKV(op string, err error) *Error {
	if err == nil {
		return nil
	}
	kind, ok := kv.AsKind(err)
	if !ok {
		return New(Internal, op, err)
	}
	switch kind {
	case kv.KindPreconditionFailed:
		return New(PreconditionFailed, op, err)
	case kv.KindNotFound:
		return New(NotFound, op, err)
	case kv.KindThrottled, kv.KindUnavailable:
		return New(Unavailable, op, err)
	case kv.KindCancelled:
		return New(Cancelled, op, err)
	default:
		return New(Internal, op, err)
	}
}
