package domain

import "time"

// User is the profile the identity provider asserted for one subject.
// Claims hold the raw id_token claims as seen on first login; the record is
// never refreshed on later logins, a returning subject gets the original
// record back unchanged.
type User struct {
	SubjectID    string         `bson:"subject_id" json:"subject_id"`
	Email        string         `bson:"email,omitempty" json:"email,omitempty"`
	DisplayName  string         `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Claims       map[string]any `bson:"claims,omitempty" json:"claims,omitempty"`
	RegisteredAt time.Time      `bson:"registered_at" json:"registered_at"`
}
