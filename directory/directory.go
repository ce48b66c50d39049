package directory

import (
	"context"

	"go.pilab.hu/portal/domain"
)

// Directory is the process-wide registry of identities the provider has
// asserted. First-seen subjects are auto-registered; existing records are
// returned as-is on later logins.
type Directory interface {
	// FindBySubjectID returns the record for the subject, or
	// domain.ErrUserNotFound. Storage failures propagate unchanged.
	FindBySubjectID(ctx context.Context, subjectID string) (*domain.User, error)

	// FindOrRegister returns the existing record for the profile's subject,
	// inserting the profile as a new record when none exists. Concurrent
	// first-time logins for one subject must leave exactly one record.
	FindOrRegister(ctx context.Context, profile *domain.User) (*domain.User, error)

	// List returns every registered profile.
	List(ctx context.Context) ([]*domain.User, error)
}
