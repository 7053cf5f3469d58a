package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blooddoc-api-server/internal/models"
)

type BloodRequestStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewBloodRequestStore(db *mongo.Database) *BloodRequestStore {
	return &BloodRequestStore{coll: db.Collection(BloodRequestsCollection), now: time.Now}
}

func (s *BloodRequestStore) Create(ctx context.Context, r *models.BloodTransferRequest) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, r)
	return translate(err)
}

func (s *BloodRequestStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.BloodTransferRequest, error) {
	var r models.BloodTransferRequest
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *BloodRequestStore) ListByRequesting(ctx context.Context, hospitalID string) ([]models.BloodTransferRequest, error) {
	return s.list(ctx, bson.M{"requestingHospitalId": hospitalID})
}

func (s *BloodRequestStore) ListByTarget(ctx context.Context, hospitalID string) ([]models.BloodTransferRequest, error) {
	return s.list(ctx, bson.M{"targetHospitalId": hospitalID})
}

func (s *BloodRequestStore) list(ctx context.Context, filter bson.M) ([]models.BloodTransferRequest, error) {
	cursor, err := s.coll.Find(ctx, filter, newestFirst)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.BloodTransferRequest
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.BloodTransferRequest{}
	}
	return out, nil
}

// Transition moves a pending request to status. ErrConditionFailed means it was no longer pending.
func (s *BloodRequestStore) Transition(ctx context.Context, id primitive.ObjectID, status string, message *string) (*models.BloodTransferRequest, error) {
	var r models.BloodTransferRequest
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.TransferPending},
		bson.M{"$set": bson.M{"status": status, "responseMessage": message, "updatedAt": s.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrConditionFailed
		}
		return nil, err
	}
	return &r, nil
}
