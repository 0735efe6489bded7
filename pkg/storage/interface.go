package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/emailscope/pkg/models"
)

// SessionStore persists one record per discovery run
type SessionStore interface {
	// SaveSession inserts or replaces the session with the same ID
	SaveSession(session *models.Session) error

	// GetSession returns the session with id, or (nil, nil) if absent
	GetSession(id string) (*models.Session, error)

	// ListSessions returns the sessions of domain, most recent first
	ListSessions(domain string) ([]models.Session, error)
}

// ResultsStore keeps the latest verdict per domain+email pair
type ResultsStore interface {
	// UpsertResults merges records into the store; an address already stored
	// for domain is updated in place and its SeenCount incremented
	UpsertResults(domain, sessionID string, records []models.Record, at time.Time) (added, updated int, err error)

	// ListResults returns the stored entries of domain sorted by email
	ListResults(domain string) ([]models.ResultDBEntry, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// Count returns the cached number of keys in the store
	Count() int

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// ResultStore combines all store interfaces for components that need full access
type ResultStore interface {
	SessionStore
	ResultsStore
	StoreAdmin
}
