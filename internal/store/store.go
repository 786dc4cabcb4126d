// Package store is the abstract document store consumed by the pipelines:
// query-by-filter reads, keyed inserts with uniqueness, and versioned
// replaces giving optimistic concurrency. Implementations: MongoDB for
// production, an in-memory store for tests and local development.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no document matched.
	ErrNotFound = errors.New("store: document not found")
	// ErrConflict means a versioned replace lost an optimistic-concurrency
	// race; the caller may re-read and retry.
	ErrConflict = errors.New("store: version conflict")
	// ErrDuplicateKey means an insert hit an existing uniqueness key.
	ErrDuplicateKey = errors.New("store: duplicate key")
	// ErrTimeout means a store call exceeded its deadline.
	ErrTimeout = errors.New("store: operation timed out")
)

// Version is the optimistic-concurrency token of a stored document.
type Version int64

// Range is a half-open interval constraint [Min, Max) on a field. A nil
// bound leaves that side open.
type Range struct {
	Min any
	Max any
}

// Filter is a structured predicate: field equality, array containment, and
// half-open ranges. Implementations never expose a query language.
type Filter struct {
	Eq       map[string]any
	Contains map[string]any
	Range    map[string]Range
}

// Eq builds an equality-only filter.
func Eq(pairs ...any) Filter {
	f := Filter{Eq: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Eq[pairs[i].(string)] = pairs[i+1]
	}
	return f
}

// Store is the document store interface. Documents are encoded/decoded via
// their bson/json struct tags; out parameters are *T for FindOne and *[]T
// for Find.
type Store interface {
	// FindOne decodes the first document matching f into out and returns
	// its version. ErrNotFound if nothing matches.
	FindOne(ctx context.Context, collection string, f Filter, out any) (Version, error)
	// Find decodes all documents matching f into out (a *[]T).
	Find(ctx context.Context, collection string, f Filter, out any) error
	// Count returns the number of documents matching f.
	Count(ctx context.Context, collection string, f Filter) (int64, error)
	// Insert stores doc under a unique key. ErrDuplicateKey if the key is
	// already present.
	Insert(ctx context.Context, collection, key string, doc any) error
	// Replace swaps the document stored under key if its current version
	// equals expected, returning the new version. ErrConflict on a version
	// mismatch, ErrNotFound if the key is absent.
	Replace(ctx context.Context, collection, key string, doc any, expected Version) (Version, error)
	// Delete removes the document stored under key. Deleting an absent key
	// returns ErrNotFound.
	Delete(ctx context.Context, collection, key string) error
}
