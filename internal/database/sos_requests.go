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

type SOSStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewSOSStore(db *mongo.Database) *SOSStore {
	return &SOSStore{coll: db.Collection(SOSRequestsCollection), now: time.Now}
}

func (s *SOSStore) Create(ctx context.Context, r *models.SOSRequest) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if r.HospitalResponses == nil {
		r.HospitalResponses = map[string]models.HospitalResponse{}
	}
	_, err := s.coll.InsertOne(ctx, r)
	return translate(err)
}

func (s *SOSStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.SOSRequest, error) {
	var r models.SOSRequest
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// SetResponses replaces the whole response map; used once after fan-out.
func (s *SOSStore) SetResponses(ctx context.Context, id primitive.ObjectID, responses map[string]models.HospitalResponse) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"hospitalResponses": responses,
		"updatedAt":         s.now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResponse overwrites one hospital's slot if it is still pending.
func (s *SOSStore) SetResponse(ctx context.Context, id primitive.ObjectID, resp models.HospitalResponse) (*models.SOSRequest, error) {
	slot := "hospitalResponses." + resp.HospitalID
	var r models.SOSRequest
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, slot + ".status": models.ResponsePending},
		bson.M{"$set": bson.M{slot: resp, "updatedAt": s.now()}},
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

// ListPendingForHospital returns requests whose slot for hospitalID is pending.
func (s *SOSStore) ListPendingForHospital(ctx context.Context, hospitalID string) ([]models.SOSRequest, error) {
	return s.list(ctx, bson.M{"hospitalResponses." + hospitalID + ".status": models.ResponsePending})
}

func (s *SOSStore) ListByPatient(ctx context.Context, patientID string) ([]models.SOSRequest, error) {
	return s.list(ctx, bson.M{"patientId": patientID})
}

func (s *SOSStore) list(ctx context.Context, filter bson.M) ([]models.SOSRequest, error) {
	cursor, err := s.coll.Find(ctx, filter, newestFirst)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.SOSRequest
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.SOSRequest{}
	}
	return out, nil
}
