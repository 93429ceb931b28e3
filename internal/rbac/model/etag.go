package model

import "github.com/google/uuid"

// NewETag returns a fresh opaque version token. The repository stamps one
// onto every row it puts, so each successful mutation advances the row's
// ETag and conditional deletes have a real value to match against.
func NewETag() string {
	return uuid.Must(uuid.NewV7()).String()
}
