package store

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced post does not exist
	ErrNotFound = errors.New("post not found")

	// ErrConflict is returned when a status transition races with another
	// writer; the post is no longer in the expected state and the caller
	// should treat it as already handled.
	ErrConflict = errors.New("post already processed")
)

// ValidationError reports a malformed post submission. Nothing is persisted
// when one of these is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid post: %s", e.Reason)
}

// Store provides durable access to posts and their scheduled triggers.
// All status mutation goes through the conditional updates here; no other
// component writes post state directly.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by the given database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}
