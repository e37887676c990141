package storage

import (
	"context"
	"time"
)

// SessionStore defines the interface for session persistence
type SessionStore interface {
	// Create creates a new session
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*Session, error)

	// Update updates an existing session
	Update(ctx context.Context, session *Session) error

	// Delete deletes a session by ID
	Delete(ctx context.Context, id string) error

	// DeleteExpired deletes all expired sessions
	DeleteExpired(ctx context.Context) (int64, error)

	// List lists all sessions initiated by a given device
	List(ctx context.Context, initiatorDeviceID string, limit, offset int) ([]*Session, error)

	// UpdateActivity updates the last activity timestamp
	UpdateActivity(ctx context.Context, id string) error

	// Count returns the total number of active sessions
	Count(ctx context.Context) (int64, error)
}

// NonceStore defines the interface for nonce management
type NonceStore interface {
	// CheckAndStore atomically checks if nonce is used and stores it
	CheckAndStore(ctx context.Context, nonce string, sessionID string, expiresAt time.Time) error

	// IsUsed checks if a nonce has been used
	IsUsed(ctx context.Context, nonce string) (bool, error)

	// DeleteExpired deletes all expired nonces
	DeleteExpired(ctx context.Context) (int64, error)

	// Count returns the number of stored nonces that have not yet expired
	Count(ctx context.Context) (int64, error)
}

// Store combines all storage interfaces
type Store interface {
	SessionStore() SessionStore
	NonceStore() NonceStore

	// Close closes the storage connection
	Close() error

	// Ping checks the storage connection
	Ping(ctx context.Context) error
}
