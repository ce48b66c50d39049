package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/portal/domain"
	"go.pilab.hu/portal/session"
)

// SessionStore is the durable session backend. Expiry is enforced by a TTL
// index on expires_at, swept by MongoDB itself. Connectivity failures surface
// to the caller; they are never collapsed into "not found".
type SessionStore struct {
	collection *mongo.Collection
	maxAge     time.Duration
}

// NewSessionStore creates the durable store and ensures its indexes.
func NewSessionStore(ctx context.Context, db *mongo.Database, maxAge time.Duration) (*SessionStore, error) {
	store := &SessionStore{
		collection: db.Collection(SessionsCollection),
		maxAge:     maxAge,
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "subject_id", Value: 1}},
		},
	}
	if _, err := store.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for sessions collection")
	}

	return store, nil
}

// Create implements session.Store.
func (s *SessionStore) Create(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.maxAge),
	}
	if _, err := s.collection.InsertOne(ctx, sess); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return sess, nil
}

// Load implements session.Store. Sessions past their expiry are reported as
// not found even before the TTL sweep removes the document.
func (s *SessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&sess)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

// Save implements session.Store. Last write wins; no conflict detection.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": sess.ID}, sess, opts); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Destroy implements session.Store. Removing an unknown ID is a no-op.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}

var _ session.Store = (*SessionStore)(nil)
