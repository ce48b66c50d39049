package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	// UsersCollection holds auto-registered identity-provider profiles.
	UsersCollection = "portal_users"
	// SessionsCollection holds durable login sessions.
	SessionsCollection = "portal_sessions"
)

var (
	clientInstance *mongo.Client
	clientOnce     sync.Once
	dbInstance     *mongo.Database
	dbOnce         sync.Once
)

// Init connects the process-wide MongoDB client and database handles.
// Call once at startup, before any repository is constructed.
func Init(ctx context.Context, uri, dbName string) error {
	var err error

	clientOnce.Do(func() {
		log.Info().Str("uri", uri).Msg("Connecting to MongoDB")

		clientOptions := options.Client().ApplyURI(uri)
		clientOptions.SetConnectTimeout(10 * time.Second)
		clientOptions.SetMonitor(otelmongo.NewMonitor())

		client, connErr := mongo.Connect(clientOptions)
		if connErr != nil {
			err = connErr
			return
		}

		if pingErr := client.Ping(ctx, readpref.Primary()); pingErr != nil {
			err = pingErr
			return
		}
		clientInstance = client
	})
	if err != nil {
		return err
	}
	if clientInstance == nil {
		return errors.New("mongodb client not initialized")
	}

	dbOnce.Do(func() {
		dbInstance = clientInstance.Database(dbName)
	})
	return nil
}

// DB returns the database handle established by Init.
func DB() *mongo.Database {
	return dbInstance
}

// Close disconnects the process-wide client.
func Close(ctx context.Context) error {
	if clientInstance == nil {
		return nil
	}
	return clientInstance.Disconnect(ctx)
}
