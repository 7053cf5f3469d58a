package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/export"
	"blooddoc-api-server/internal/geo"
	"blooddoc-api-server/internal/models"
)

type CreateHospitalInput struct {
	Name    string
	Address string
	Phone   string
	Email   string
	City    string
}

// UpdateHospitalInput is a partial update; nil fields are left untouched.
type UpdateHospitalInput struct {
	Name    *string
	Address *string
	Phone   *string
	Email   *string
	City    *string
	Beds    *[]models.Bed
	Staff   *[]models.StaffMember
}

type UpsertInventoryInput struct {
	BloodType  string
	Units      *int
	ExpiryDate *string
}

type UpdateInventoryInput struct {
	Units      *int
	ExpiryDate *string
}

// SearchInput mirrors the search query string. Lat and Lng only filter when both are present.
type SearchInput struct {
	BloodType string
	Lat       *float64
	Lng       *float64
	City      string
}

type HospitalService struct {
	hospitals    HospitalRepository
	resolver     geo.Resolver
	radiusMeters float64
	now          func() time.Time
}

func NewHospitalService(hospitals HospitalRepository, resolver geo.Resolver, radiusMeters float64) *HospitalService {
	return &HospitalService{
		hospitals:    hospitals,
		resolver:     resolver,
		radiusMeters: radiusMeters,
		now:          time.Now,
	}
}

func (s *HospitalService) CreateProfile(ctx context.Context, caller auth.Principal, in CreateHospitalInput) (*models.Hospital, error) {
	if caller.Role != models.RoleHospital && caller.Role != models.RoleAdmin {
		return nil, apperr.Forbidden("Only hospital accounts can create a hospital profile.")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.City = strings.TrimSpace(in.City)
	if in.Name == "" || in.Address == "" || in.Phone == "" || in.Email == "" || in.City == "" {
		return nil, apperr.Validation("Name, address, phone, email and city are required.")
	}

	_, err := s.hospitals.FindByOwner(ctx, caller.ID)
	if err == nil {
		return nil, apperr.Conflict("A hospital profile already exists for this account.")
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Internal("Server error", err)
	}

	now := s.now()
	h := &models.Hospital{
		Name:           in.Name,
		Address:        in.Address,
		Phone:          in.Phone,
		Email:          in.Email,
		City:           in.City,
		Location:       resolveCity(ctx, s.resolver, in.City),
		BloodInventory: models.Inventory{},
		Beds:           []models.Bed{},
		Staff:          []models.StaffMember{},
		OwnerID:        caller.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.hospitals.Create(ctx, h); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Conflict("A hospital profile already exists for this account.")
		}
		return nil, apperr.Internal("Server error", err)
	}
	log.Info().Str("hospital_id", h.ID.Hex()).Str("owner_id", caller.ID).Msg("hospital profile created")
	return h, nil
}

func (s *HospitalService) List(ctx context.Context) ([]models.Hospital, error) {
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return hospitals, nil
}

func (s *HospitalService) GetByID(ctx context.Context, rawID string) (*models.Hospital, error) {
	id, err := parseID(rawID, "hospital")
	if err != nil {
		return nil, err
	}
	h, err := s.hospitals.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Hospital not found.")
	}
	return h, nil
}

func (s *HospitalService) GetByOwner(ctx context.Context, caller auth.Principal, ownerID string) (*models.Hospital, error) {
	if !auth.Authorize(caller, ownerID) {
		return nil, apperr.Forbidden("You can only view your own hospital profile.")
	}
	h, err := s.hospitals.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err, "Hospital profile not found for this user.")
	}
	return h, nil
}

// loadOwned fetches a hospital by profile id and checks the caller may modify it.
func (s *HospitalService) loadOwned(ctx context.Context, caller auth.Principal, rawID string) (*models.Hospital, error) {
	h, err := s.GetByID(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !auth.Authorize(caller, h.OwnerID) {
		return nil, apperr.Forbidden("You can only manage your own hospital.")
	}
	return h, nil
}

var shifts = map[string]bool{"morning": true, "evening": true, "night": true}

func (s *HospitalService) UpdateProfile(ctx context.Context, caller auth.Principal, rawID string, in UpdateHospitalInput) (*models.Hospital, error) {
	h, err := s.loadOwned(ctx, caller, rawID)
	if err != nil {
		return nil, err
	}

	patch := database.HospitalPatch{
		Name:    in.Name,
		Address: in.Address,
		Phone:   in.Phone,
		Email:   in.Email,
	}
	if in.City != nil {
		city := strings.TrimSpace(*in.City)
		patch.City = &city
		patch.Location = resolveCity(ctx, s.resolver, city)
		patch.SetLocation = true
	}
	if in.Beds != nil {
		beds := make([]models.Bed, len(*in.Beds))
		for i, b := range *in.Beds {
			if b.ID == "" {
				b.ID = uuid.NewString()
			}
			beds[i] = b
		}
		patch.Beds = &beds
	}
	if in.Staff != nil {
		staff := make([]models.StaffMember, len(*in.Staff))
		for i, m := range *in.Staff {
			if m.Shift != "" && !shifts[m.Shift] {
				return nil, apperr.Validation("Invalid shift %q: must be morning, evening or night.", m.Shift)
			}
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			staff[i] = m
		}
		patch.Staff = &staff
	}

	updated, err := s.hospitals.Update(ctx, h.ID, patch)
	if err != nil {
		return nil, storeErr(err, "Hospital not found.")
	}
	return updated, nil
}

func (s *HospitalService) DeleteProfile(ctx context.Context, caller auth.Principal, rawID string) error {
	h, err := s.loadOwned(ctx, caller, rawID)
	if err != nil {
		return err
	}
	if err := s.hospitals.Delete(ctx, h.ID); err != nil {
		return storeErr(err, "Hospital not found.")
	}
	log.Info().Str("hospital_id", h.ID.Hex()).Str("by", caller.ID).Msg("hospital profile deleted")
	return nil
}

func parseExpiry(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, ok := models.ParseDate(*raw)
	if !ok {
		return nil, apperr.Validation("Invalid expiry date %q.", *raw)
	}
	return &t, nil
}

// UpsertInventory sets the units for a blood type, creating the entry if absent.
// An omitted expiry date keeps the existing one.
func (s *HospitalService) UpsertInventory(ctx context.Context, caller auth.Principal, rawID string, in UpsertInventoryInput) ([]models.InventoryEntry, error) {
	if !models.IsValidBloodType(in.BloodType) {
		return nil, apperr.Validation("Invalid blood type.")
	}
	if in.Units == nil || *in.Units < 0 {
		return nil, apperr.Validation("Units must be a non-negative number.")
	}
	expiry, err := parseExpiry(in.ExpiryDate)
	if err != nil {
		return nil, err
	}

	h, err := s.loadOwned(ctx, caller, rawID)
	if err != nil {
		return nil, err
	}

	entry, exists := h.BloodInventory[in.BloodType]
	if !exists {
		entry = models.InventoryEntry{ID: primitive.NewObjectID().Hex(), BloodType: in.BloodType}
	}
	entry.Units = *in.Units
	entry.LastUpdated = s.now()
	if expiry != nil {
		entry.ExpiryDate = expiry
	}

	if err := s.hospitals.SetInventoryEntry(ctx, h.ID, entry); err != nil {
		return nil, storeErr(err, "Hospital not found.")
	}
	if h.BloodInventory == nil {
		h.BloodInventory = models.Inventory{}
	}
	h.BloodInventory[in.BloodType] = entry
	return h.BloodInventory.Entries(), nil
}

func (s *HospitalService) UpdateInventoryEntry(ctx context.Context, caller auth.Principal, rawID, entryID string, in UpdateInventoryInput) ([]models.InventoryEntry, error) {
	if in.Units == nil && in.ExpiryDate == nil {
		return nil, apperr.Validation("Provide units or expiryDate to update.")
	}
	if in.Units != nil && *in.Units < 0 {
		return nil, apperr.Validation("Units must be a non-negative number.")
	}
	expiry, err := parseExpiry(in.ExpiryDate)
	if err != nil {
		return nil, err
	}

	h, err := s.loadOwned(ctx, caller, rawID)
	if err != nil {
		return nil, err
	}
	entry, ok := h.BloodInventory.ByID(entryID)
	if !ok {
		return nil, apperr.NotFound("Blood inventory entry not found.")
	}

	// Without new units only the expiry is written; the stock count stays whatever
	// concurrent transfers and SOS acceptances have left it at.
	if in.Units == nil {
		if expiry == nil {
			return nil, apperr.Validation("Provide units or expiryDate to update.")
		}
		if err := s.hospitals.SetInventoryExpiry(ctx, h.ID, entry.BloodType, *expiry); err != nil {
			return nil, storeErr(err, "Blood inventory entry not found.")
		}
		fresh, err := s.hospitals.FindByID(ctx, h.ID)
		if err != nil {
			return nil, storeErr(err, "Hospital not found.")
		}
		return fresh.BloodInventory.Entries(), nil
	}

	entry.Units = *in.Units
	if expiry != nil {
		entry.ExpiryDate = expiry
	}
	entry.LastUpdated = s.now()

	if err := s.hospitals.SetInventoryEntry(ctx, h.ID, entry); err != nil {
		return nil, storeErr(err, "Hospital not found.")
	}
	h.BloodInventory[entry.BloodType] = entry
	return h.BloodInventory.Entries(), nil
}

func (s *HospitalService) DeleteInventoryEntry(ctx context.Context, caller auth.Principal, rawID, entryID string) error {
	h, err := s.loadOwned(ctx, caller, rawID)
	if err != nil {
		return err
	}
	entry, ok := h.BloodInventory.ByID(entryID)
	if !ok {
		return apperr.NotFound("Blood inventory entry not found.")
	}
	if err := s.hospitals.RemoveInventoryEntry(ctx, h.ID, entry.BloodType); err != nil {
		return storeErr(err, "Blood inventory entry not found.")
	}
	return nil
}

// Search filters hospitals by stock and proximity. A city is only geocoded
// when no coordinates were given; an unknown city disables the geo filter.
func (s *HospitalService) Search(ctx context.Context, in SearchInput) ([]models.Hospital, error) {
	filter := database.HospitalFilter{RadiusMeters: s.radiusMeters}
	if in.BloodType != "" {
		if !models.IsValidBloodType(in.BloodType) {
			return nil, apperr.Validation("Invalid blood type.")
		}
		filter.BloodType = in.BloodType
	}

	if !inRange(in.Lat, 90) || !inRange(in.Lng, 180) {
		return nil, apperr.Validation("Invalid latitude or longitude format.")
	}

	switch {
	case in.Lat != nil && in.Lng != nil:
		p := models.NewGeoPoint(*in.Lng, *in.Lat)
		filter.Near = &p
	case in.Lat == nil && in.Lng == nil && strings.TrimSpace(in.City) != "":
		filter.Near = resolveCity(ctx, s.resolver, in.City)
	case in.Lat != nil || in.Lng != nil:
		log.Debug().Msg("only one of lat/lng given, geo filter ignored")
	}

	hospitals, err := s.hospitals.Search(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("Server error during hospital search.", err)
	}
	return hospitals, nil
}

// inRange reports whether an optional coordinate lies in [-limit, limit]. NaN is out of range.
func inRange(v *float64, limit float64) bool {
	return v == nil || (*v >= -limit && *v <= limit)
}

// ExportInventory renders the hospital's inventory as an XLSX workbook.
func (s *HospitalService) ExportInventory(ctx context.Context, caller auth.Principal, rawID string) ([]byte, string, error) {
	h, err := s.loadOwned(ctx, caller, rawID)
	if err != nil {
		return nil, "", err
	}
	data, err := export.InventoryWorkbook(h)
	if err != nil {
		return nil, "", apperr.Internal("Failed to export inventory", err)
	}
	return data, export.InventoryFilename(h, s.now()), nil
}
