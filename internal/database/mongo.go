// server/internal/database/mongo.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	UsersCollection         = "users"
	HospitalsCollection     = "hospitals"
	BloodRequestsCollection = "bloodRequests"
	SOSRequestsCollection   = "sos_requests"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("duplicate key")
	ErrConditionFailed = errors.New("update condition not met")
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "role", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		HospitalsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		BloodRequestsCollection: {
			{Keys: bson.D{{Key: "targetHospitalId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "requestingHospitalId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		SOSRequestsCollection: {
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
