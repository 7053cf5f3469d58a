package models

import (
	"encoding/json"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SOSActive   = "active"
	SOSResolved = "resolved"

	ResponsePending  = "pending"
	ResponseAccepted = "accepted"
	ResponseDenied   = "denied"
)

var Urgencies = []string{"critical", "urgent", "moderate"}

func IsValidUrgency(u string) bool {
	for _, v := range Urgencies {
		if v == u {
			return true
		}
	}
	return false
}

// HospitalResponse is one notified hospital's slot within an SOS request.
type HospitalResponse struct {
	HospitalID      string     `bson:"hospitalId" json:"hospitalId"`
	Status          string     `bson:"status" json:"status"`
	ResponseMessage *string    `bson:"responseMessage" json:"responseMessage"`
	RespondedAt     *time.Time `bson:"respondedAt,omitempty" json:"respondedAt"`
}

// HospitalResponses holds one slot per notified hospital, keyed by the hospital
// owner's account id. On the wire it is a list ordered by hospital id.
type HospitalResponses map[string]HospitalResponse

func (r HospitalResponses) List() []HospitalResponse {
	out := make([]HospitalResponse, 0, len(r))
	for _, slot := range r {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HospitalID < out[j].HospitalID })
	return out
}

func (r HospitalResponses) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.List())
}

func (r *HospitalResponses) UnmarshalJSON(data []byte) error {
	var slots []HospitalResponse
	if err := json.Unmarshal(data, &slots); err != nil {
		return err
	}
	out := make(HospitalResponses, len(slots))
	for _, slot := range slots {
		out[slot.HospitalID] = slot
	}
	*r = out
	return nil
}

// SOSRequest is a patient's emergency broadcast.
type SOSRequest struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID         string             `bson:"patientId" json:"patientId"`
	BloodType         string             `bson:"bloodType" json:"bloodType"`
	Urgency           string             `bson:"urgency" json:"urgency"`
	Message           *string            `bson:"message" json:"message"`
	Location          GeoPoint           `bson:"location" json:"location"`
	Status            string             `bson:"status" json:"status"`
	HospitalResponses HospitalResponses  `bson:"hospitalResponses" json:"hospitalResponses"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
