// server/internal/models/common.go
package models

import (
	"strings"
	"time"
)

// Roles carried in the token and stored on accounts.
const (
	RolePatient  = "patient"
	RoleHospital = "hospital"
	RoleAdmin    = "admin" // elevated role, may act for any owner
)

// BloodTypes lists the accepted blood groups in display order.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func IsValidBloodType(bt string) bool {
	for _, t := range BloodTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

// dateLayouts are the accepted inputs for expiry dates.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDate accepts either a bare date or an RFC3339 timestamp.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
