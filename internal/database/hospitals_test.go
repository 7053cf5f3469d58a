package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"blooddoc-api-server/internal/models"
)

func hospitalStore(mt *mtest.T) *HospitalStore {
	s := NewHospitalStore(mt.DB)
	s.now = fixedClock
	return s
}

func TestHospitalStore_DecrementUnits(t *testing.T) {
	mt := mockMongo(t)

	mt.Run("guards on held units", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(1))
		require.NoError(mt, hospitalStore(mt).DecrementUnits(ctx(), "owner-1", "O-", 3))

		cmd := lastCommand(mt)
		q := cmd.Lookup("updates", "0", "q").Document()
		assert.Equal(mt, "owner-1", q.Lookup("userId").StringValue())
		assert.EqualValues(mt, 3, q.Lookup("bloodInventory.O-.units", "$gte").AsInt64())

		u := cmd.Lookup("updates", "0", "u").Document()
		assert.EqualValues(mt, -3, u.Lookup("$inc", "bloodInventory.O-.units").AsInt64())
		assert.True(mt, fixedNow.Equal(u.Lookup("$set", "bloodInventory.O-.lastUpdated").Time()))
		assert.True(mt, fixedNow.Equal(u.Lookup("$set", "updatedAt").Time()))
	})

	mt.Run("insufficient stock", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(0))
		err := hospitalStore(mt).DecrementUnits(ctx(), "owner-1", "O-", 50)
		assert.ErrorIs(mt, err, ErrConditionFailed)
	})

	mt.Run("server error passes through", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad update"}))
		err := hospitalStore(mt).DecrementUnits(ctx(), "owner-1", "O-", 1)
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrConditionFailed)
	})
}

func TestHospitalStore_IncrementUnits(t *testing.T) {
	mt := mockMongo(t)

	mt.Run("adds to an existing entry", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(1))
		require.NoError(mt, hospitalStore(mt).IncrementUnits(ctx(), "owner-1", "AB+", 2))

		cmd := lastCommand(mt)
		assert.True(mt, cmd.Lookup("updates", "0", "q", "bloodInventory.AB+", "$exists").Boolean())
		assert.EqualValues(mt, 2, cmd.Lookup("updates", "0", "u", "$inc", "bloodInventory.AB+.units").AsInt64())
	})

	mt.Run("missing entry", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(0))
		assert.ErrorIs(mt, hospitalStore(mt).IncrementUnits(ctx(), "owner-1", "AB+", 2), ErrNotFound)
	})
}

func TestHospitalStore_SetInventoryExpiry(t *testing.T) {
	mt := mockMongo(t)
	id := primitive.NewObjectID()
	expiry := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	mt.Run("leaves units untouched", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(1))
		require.NoError(mt, hospitalStore(mt).SetInventoryExpiry(ctx(), id, "B+", expiry))

		cmd := lastCommand(mt)
		assert.Equal(mt, id, cmd.Lookup("updates", "0", "q", "_id").ObjectID())

		u := cmd.Lookup("updates", "0", "u").Document()
		set := u.Lookup("$set").Document()
		assert.True(mt, expiry.Equal(set.Lookup("bloodInventory.B+.expiryDate").Time()))
		_, err := set.LookupErr("bloodInventory.B+.units")
		assert.Error(mt, err)
		_, err = u.LookupErr("$inc")
		assert.Error(mt, err)
	})

	mt.Run("missing entry", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(0))
		assert.ErrorIs(mt, hospitalStore(mt).SetInventoryExpiry(ctx(), id, "B+", expiry), ErrNotFound)
	})
}

func TestHospitalStore_RemoveInventoryEntry(t *testing.T) {
	mt := mockMongo(t)

	mt.Run("unsets the blood type", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(1))
		require.NoError(mt, hospitalStore(mt).RemoveInventoryEntry(ctx(), primitive.NewObjectID(), "A-"))

		u := lastCommand(mt).Lookup("updates", "0", "u").Document()
		_, err := u.LookupErr("$unset", "bloodInventory.A-")
		assert.NoError(mt, err)
	})

	mt.Run("missing entry", func(mt *mtest.T) {
		mt.AddMockResponses(updateReply(0))
		assert.ErrorIs(mt, hospitalStore(mt).RemoveInventoryEntry(ctx(), primitive.NewObjectID(), "A-"), ErrNotFound)
	})
}

func TestHospitalStore_Search(t *testing.T) {
	mt := mockMongo(t)

	mt.Run("near with blood type", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.hospitals", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "name", Value: "City General"},
			{Key: "userId", Value: "owner-1"},
			{Key: "bloodInventory", Value: bson.D{
				{Key: "O+", Value: bson.D{{Key: "id", Value: "e1"}, {Key: "bloodType", Value: "O+"}, {Key: "units", Value: int32(4)}}},
			}},
		}))

		near := models.GeoPoint{Type: "Point", Coordinates: [2]float64{80.27, 13.08}}
		found, err := hospitalStore(mt).Search(ctx(), HospitalFilter{BloodType: "O+", Near: &near, RadiusMeters: 50000})
		require.NoError(mt, err)
		require.Len(mt, found, 1)
		assert.Equal(mt, "City General", found[0].Name)
		assert.Equal(mt, 4, found[0].Units("O+"))

		filter := lastCommand(mt).Lookup("filter").Document()
		assert.EqualValues(mt, 0, filter.Lookup("bloodInventory.O+.units", "$gt").AsInt64())
		geometry := filter.Lookup("location", "$nearSphere", "$geometry").Document()
		assert.Equal(mt, "Point", geometry.Lookup("type").StringValue())
		assert.Equal(mt, 80.27, geometry.Lookup("coordinates", "0").Double())
		assert.Equal(mt, 13.08, geometry.Lookup("coordinates", "1").Double())
		assert.Equal(mt, 50000.0, filter.Lookup("location", "$nearSphere", "$maxDistance").Double())
	})

	mt.Run("no criteria returns an empty list", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.hospitals", mtest.FirstBatch))
		found, err := hospitalStore(mt).List(ctx())
		require.NoError(mt, err)
		assert.NotNil(mt, found)
		assert.Empty(mt, found)

		elems, err := lastCommand(mt).Lookup("filter").Document().Elements()
		require.NoError(mt, err)
		assert.Empty(mt, elems)
	})
}

func TestHospitalStore_FindByOwner(t *testing.T) {
	mt := mockMongo(t)

	mt.Run("miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.hospitals", mtest.FirstBatch))
		_, err := hospitalStore(mt).FindByOwner(ctx(), "owner-9")
		assert.ErrorIs(mt, err, ErrNotFound)
		assert.Equal(mt, "owner-9", lastCommand(mt).Lookup("filter", "userId").StringValue())
	})
}
