package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"blooddoc-api-server/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ctx() context.Context { return context.Background() }

func newAccount() *models.Account {
	return &models.Account{ID: primitive.NewObjectID(), Email: "a@example.com", Name: "A", Role: models.RolePatient, CreatedAt: fixedNow}
}

// mockMongo runs the store tests against the driver's mock deployment, so the
// commands the stores send can be inspected without a server.
func mockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

// updateReply is what the server answers to an update that matched n documents.
func updateReply(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

// lastCommand returns the first command sent since the previous call.
func lastCommand(mt *mtest.T) bson.Raw {
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt, "no command was sent")
	return evt.Command
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	err := translate(dup)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "E11000")

	other := errors.New("socket closed")
	assert.Equal(t, other, translate(other))
}

func TestAccountStore(t *testing.T) {
	mt := mockMongo(t)

	mt.Run("duplicate email and role", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))
		err := NewAccountStore(mt.DB).Create(ctx(), newAccount())
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("lookup miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch))
		_, err := NewAccountStore(mt.DB).FindByEmailRole(ctx(), "nobody@example.com", "patient")
		assert.ErrorIs(mt, err, ErrNotFound)

		filter := lastCommand(mt).Lookup("filter")
		assert.Equal(mt, "nobody@example.com", filter.Document().Lookup("email").StringValue())
		assert.Equal(mt, "patient", filter.Document().Lookup("role").StringValue())
	})

	mt.Run("delete", func(mt *mtest.T) {
		store := NewAccountStore(mt.DB)
		a := newAccount()

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}))
		require.NoError(mt, store.Delete(ctx(), a.ID))
		assert.Equal(mt, a.ID, lastCommand(mt).Lookup("deletes", "0", "q", "_id").ObjectID())

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))
		assert.ErrorIs(mt, store.Delete(ctx(), a.ID), ErrNotFound)
	})
}
