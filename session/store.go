package session

import (
	"context"

	"go.pilab.hu/portal/domain"
)

// Store is the persistence contract shared by the transient and the durable
// session backends. The access-control layer sees no behavioral difference
// between them beyond durability and the expiry mechanism's failure mode.
type Store interface {
	// Create allocates a fresh anonymous session.
	Create(ctx context.Context) (*domain.Session, error)

	// Load returns the session for the ID, or domain.ErrSessionNotFound when
	// the ID is unknown or the session has expired.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Save persists the session state, last write wins.
	Save(ctx context.Context, s *domain.Session) error

	// Destroy removes the session. Destroying an unknown ID is a no-op.
	Destroy(ctx context.Context, id string) error
}
