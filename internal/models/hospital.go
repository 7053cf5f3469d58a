// server/internal/models/hospital.go
package models

import (
	"encoding/json"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InventoryEntry is a hospital's stock record for one blood type.
type InventoryEntry struct {
	ID          string     `bson:"id" json:"id"`
	BloodType   string     `bson:"bloodType" json:"bloodType"`
	Units       int        `bson:"units" json:"units"`
	ExpiryDate  *time.Time `bson:"expiryDate,omitempty" json:"expiryDate"`
	LastUpdated time.Time  `bson:"lastUpdated" json:"lastUpdated"`
}

// Inventory is keyed by blood type, so a hospital holds at most one entry per type.
type Inventory map[string]InventoryEntry

// Entries returns the inventory ordered by BloodTypes.
func (inv Inventory) Entries() []InventoryEntry {
	entries := make([]InventoryEntry, 0, len(inv))
	for _, e := range inv {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return bloodTypeRank(entries[i].BloodType) < bloodTypeRank(entries[j].BloodType)
	})
	return entries
}

// MarshalJSON renders the inventory as an ordered list of entries.
func (inv Inventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inv.Entries())
}

func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var entries []InventoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(Inventory, len(entries))
	for _, e := range entries {
		out[e.BloodType] = e
	}
	*inv = out
	return nil
}

// ByID finds an entry by its generated id.
func (inv Inventory) ByID(entryID string) (InventoryEntry, bool) {
	for _, e := range inv {
		if e.ID == entryID {
			return e, true
		}
	}
	return InventoryEntry{}, false
}

func bloodTypeRank(bt string) int {
	for i, t := range BloodTypes {
		if t == bt {
			return i
		}
	}
	return len(BloodTypes)
}

type Bed struct {
	ID            string     `bson:"id" json:"id"`
	Ward          string     `bson:"ward" json:"ward"`
	BedNumber     string     `bson:"bedNumber" json:"bedNumber"`
	Occupied      bool       `bson:"occupied" json:"occupied"`
	PatientID     string     `bson:"patientId,omitempty" json:"patientId,omitempty"`
	AdmissionDate *time.Time `bson:"admissionDate,omitempty" json:"admissionDate,omitempty"`
}

type StaffMember struct {
	ID         string `bson:"id" json:"id"`
	Name       string `bson:"name" json:"name"`
	Role       string `bson:"role" json:"role"`
	Department string `bson:"department" json:"department"`
	Shift      string `bson:"shift" json:"shift"` // morning, evening, night
	Available  bool   `bson:"available" json:"available"`
}

// Hospital is the profile owned 1:1 by a hospital account (OwnerID).
type Hospital struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Address        string             `bson:"address" json:"address"`
	Phone          string             `bson:"phone" json:"phone"`
	Email          string             `bson:"email" json:"email"`
	City           string             `bson:"city" json:"city"`
	Location       *GeoPoint          `bson:"location" json:"location"`
	BloodInventory Inventory          `bson:"bloodInventory" json:"bloodInventory"`
	Beds           []Bed              `bson:"beds" json:"beds"`
	Staff          []StaffMember      `bson:"staff" json:"staff"`
	OwnerID        string             `bson:"userId" json:"userId"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Units returns the stock held for a blood type, zero if none.
func (h *Hospital) Units(bloodType string) int {
	if h.BloodInventory == nil {
		return 0
	}
	return h.BloodInventory[bloodType].Units
}
