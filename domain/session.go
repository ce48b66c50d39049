package domain

import "time"

// Session is the server-side state for one browser, keyed by the value of the
// session cookie. SubjectID stays empty until the provider handshake completes.
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	SubjectID string    `bson:"subject_id,omitempty" json:"subject_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// Authenticated reports whether the handshake bound a subject to this session.
func (s *Session) Authenticated() bool {
	return s != nil && s.SubjectID != ""
}
