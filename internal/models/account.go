package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account matches a document in the users collection. (email, role) is unique.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Role         string             `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
