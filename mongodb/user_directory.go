package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/portal/directory"
	"go.pilab.hu/portal/domain"
)

// UserDirectory backs the directory contract with MongoDB so registrations
// survive restarts. Duplicate first-time registrations are deduplicated by
// the unique subject_id index together with $setOnInsert.
type UserDirectory struct {
	collection *mongo.Collection
}

// NewUserDirectory creates the Mongo-backed directory and ensures its indexes.
func NewUserDirectory(ctx context.Context, db *mongo.Database) (*UserDirectory, error) {
	dir := &UserDirectory{
		collection: db.Collection(UsersCollection),
	}

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "subject_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := dir.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for users collection")
	}

	return dir, nil
}

// FindBySubjectID implements directory.Directory.
func (d *UserDirectory) FindBySubjectID(ctx context.Context, subjectID string) (*domain.User, error) {
	var user domain.User
	err := d.collection.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return &user, nil
}

// FindOrRegister implements directory.Directory. The upsert only sets fields
// on insert, so a subject registered by a concurrent login, or on an earlier
// one, keeps its original profile.
func (d *UserDirectory) FindOrRegister(ctx context.Context, profile *domain.User) (*domain.User, error) {
	if profile == nil || profile.SubjectID == "" {
		return nil, domain.ErrMissingSubjectID
	}

	registered := *profile
	if registered.RegisteredAt.IsZero() {
		registered.RegisteredAt = time.Now().UTC()
	}

	filter := bson.M{"subject_id": registered.SubjectID}
	update := bson.M{"$setOnInsert": registered}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result domain.User
	if err := d.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	return &result, nil
}

// List implements directory.Directory. Records come back in registration order.
func (d *UserDirectory) List(ctx context.Context) ([]*domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "registered_at", Value: 1}})
	cursor, err := d.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return users, nil
}

var _ directory.Directory = (*UserDirectory)(nil)
