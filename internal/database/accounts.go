package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"blooddoc-api-server/internal/models"
)

type AccountStore struct {
	coll *mongo.Collection
}

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{coll: db.Collection(UsersCollection)}
}

// Create inserts the account and fills in its id. A taken (email, role) yields ErrDuplicate.
func (s *AccountStore) Create(ctx context.Context, a *models.Account) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, a)
	return translate(err)
}

// Delete removes an account. It only undoes a registration whose follow-up writes failed.
func (s *AccountStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AccountStore) FindByEmailRole(ctx context.Context, email, role string) (*models.Account, error) {
	var a models.Account
	err := s.coll.FindOne(ctx, bson.M{"email": email, "role": role}).Decode(&a)
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}
