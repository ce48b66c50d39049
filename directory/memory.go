package directory

import (
	"context"
	"sync"
	"time"

	"go.pilab.hu/portal/domain"
)

// Memory is the in-process Directory. Registrations are serialized by the
// mutex, which is what keeps concurrent first-time logins for the same
// subject from creating duplicate records.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	order []string
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*domain.User),
	}
}

// FindBySubjectID implements Directory.
func (m *Memory) FindBySubjectID(_ context.Context, subjectID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[subjectID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// FindOrRegister implements Directory.
func (m *Memory) FindOrRegister(_ context.Context, profile *domain.User) (*domain.User, error) {
	if profile == nil || profile.SubjectID == "" {
		return nil, domain.ErrMissingSubjectID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.users[profile.SubjectID]; ok {
		return existing, nil
	}

	registered := *profile
	if registered.RegisteredAt.IsZero() {
		registered.RegisteredAt = time.Now().UTC()
	}
	m.users[registered.SubjectID] = &registered
	m.order = append(m.order, registered.SubjectID)

	return &registered, nil
}

// List implements Directory. Records come back in registration order.
func (m *Memory) List(_ context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*domain.User, 0, len(m.order))
	for _, id := range m.order {
		users = append(users, m.users[id])
	}
	return users, nil
}

var _ Directory = (*Memory)(nil)
