// server/internal/database/hospitals.go
package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"blooddoc-api-server/internal/models"
)

// HospitalFilter narrows a hospital search. Zero values disable a criterion.
type HospitalFilter struct {
	BloodType    string
	Near         *models.GeoPoint
	RadiusMeters float64
}

// HospitalPatch carries the profile fields an update may change. Nil means unchanged.
type HospitalPatch struct {
	Name        *string
	Address     *string
	Phone       *string
	Email       *string
	City        *string
	Location    *models.GeoPoint
	SetLocation bool // write Location even when nil
	Beds        *[]models.Bed
	Staff       *[]models.StaffMember
}

type HospitalStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewHospitalStore(db *mongo.Database) *HospitalStore {
	return &HospitalStore{coll: db.Collection(HospitalsCollection), now: time.Now}
}

func (s *HospitalStore) Create(ctx context.Context, h *models.Hospital) error {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	if h.BloodInventory == nil {
		h.BloodInventory = models.Inventory{}
	}
	_, err := s.coll.InsertOne(ctx, h)
	return translate(err)
}

func (s *HospitalStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *HospitalStore) FindByOwner(ctx context.Context, ownerID string) (*models.Hospital, error) {
	return s.findOne(ctx, bson.M{"userId": ownerID})
}

func (s *HospitalStore) findOne(ctx context.Context, filter bson.M) (*models.Hospital, error) {
	var h models.Hospital
	if err := s.coll.FindOne(ctx, filter).Decode(&h); err != nil {
		return nil, translate(err)
	}
	return &h, nil
}

func (s *HospitalStore) List(ctx context.Context) ([]models.Hospital, error) {
	return s.Search(ctx, HospitalFilter{})
}

// Search applies the filter. With Near set, results are ordered nearest first.
func (s *HospitalStore) Search(ctx context.Context, f HospitalFilter) ([]models.Hospital, error) {
	query := bson.M{}
	if f.BloodType != "" {
		query["bloodInventory."+f.BloodType+".units"] = bson.M{"$gt": 0}
	}
	if f.Near != nil {
		query["location"] = bson.M{
			"$nearSphere": bson.M{
				"$geometry":    f.Near,
				"$maxDistance": f.RadiusMeters,
			},
		}
	}

	cursor, err := s.coll.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hospitals []models.Hospital
	if err := cursor.All(ctx, &hospitals); err != nil {
		return nil, err
	}
	if hospitals == nil {
		hospitals = []models.Hospital{}
	}
	return hospitals, nil
}

func (s *HospitalStore) Update(ctx context.Context, id primitive.ObjectID, p HospitalPatch) (*models.Hospital, error) {
	set := bson.M{"updatedAt": s.now()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.City != nil {
		set["city"] = *p.City
	}
	if p.SetLocation || p.Location != nil {
		set["location"] = p.Location
	}
	if p.Beds != nil {
		set["beds"] = *p.Beds
	}
	if p.Staff != nil {
		set["staff"] = *p.Staff
	}

	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *HospitalStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInventoryEntry writes the entry under its blood type, replacing any existing one.
func (s *HospitalStore) SetInventoryEntry(ctx context.Context, id primitive.ObjectID, e models.InventoryEntry) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"bloodInventory." + e.BloodType: e,
		"updatedAt":                     s.now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInventoryExpiry changes the expiry of an existing entry and leaves its units alone,
// so it cannot undo a concurrent decrement.
func (s *HospitalStore) SetInventoryExpiry(ctx context.Context, id primitive.ObjectID, bloodType string, expiry time.Time) error {
	field := "bloodInventory." + bloodType
	now := s.now()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, field: bson.M{"$exists": true}},
		bson.M{"$set": bson.M{
			field + ".expiryDate":  expiry,
			field + ".lastUpdated": now,
			"updatedAt":            now,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HospitalStore) RemoveInventoryEntry(ctx context.Context, id primitive.ObjectID, bloodType string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "bloodInventory." + bloodType: bson.M{"$exists": true}},
		bson.M{
			"$unset": bson.M{"bloodInventory." + bloodType: ""},
			"$set":   bson.M{"updatedAt": s.now()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementUnits removes n units from the owner's stock only if at least n are held.
// ErrConditionFailed means the stock was insufficient (or the entry/hospital is absent).
func (s *HospitalStore) DecrementUnits(ctx context.Context, ownerID, bloodType string, n int) error {
	field := "bloodInventory." + bloodType
	now := s.now()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": ownerID, field + ".units": bson.M{"$gte": n}},
		bson.M{
			"$inc": bson.M{field + ".units": -n},
			"$set": bson.M{field + ".lastUpdated": now, "updatedAt": now},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConditionFailed
	}
	return nil
}

// IncrementUnits returns units to an existing entry.
func (s *HospitalStore) IncrementUnits(ctx context.Context, ownerID, bloodType string, n int) error {
	field := "bloodInventory." + bloodType
	now := s.now()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": ownerID, field: bson.M{"$exists": true}},
		bson.M{
			"$inc": bson.M{field + ".units": n},
			"$set": bson.M{field + ".lastUpdated": now, "updatedAt": now},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
