package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TransferPending   = "pending"
	TransferApproved  = "approved" // defined but never stored: a successful approval lands on fulfilled
	TransferDenied    = "denied"
	TransferFulfilled = "fulfilled"
)

// BloodTransferRequest is a hospital-to-hospital request for units of one blood type.
// Hospital ids are owner account ids, not profile ids.
type BloodTransferRequest struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestingHospitalID string             `bson:"requestingHospitalId" json:"requestingHospitalId"`
	TargetHospitalID     string             `bson:"targetHospitalId" json:"targetHospitalId"`
	BloodType            string             `bson:"bloodType" json:"bloodType"`
	UnitsRequested       int                `bson:"unitsRequested" json:"unitsRequested"`
	Status               string             `bson:"status" json:"status"`
	ResponseMessage      *string            `bson:"responseMessage" json:"responseMessage"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}
