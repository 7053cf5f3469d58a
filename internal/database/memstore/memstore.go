// Package memstore is an in-memory implementation of the persistence layer.
// It mirrors the MongoDB stores' semantics, including conditional updates
// and nearest-first geo search, and backs the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/geo"
	"blooddoc-api-server/internal/models"
)

// Store holds every collection behind one mutex.
type Store struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]models.Account
	hosps    map[primitive.ObjectID]models.Hospital
	requests map[primitive.ObjectID]models.BloodTransferRequest
	sos      map[primitive.ObjectID]models.SOSRequest
	now      func() time.Time
}

func New() *Store {
	return &Store{
		accounts: make(map[primitive.ObjectID]models.Account),
		hosps:    make(map[primitive.ObjectID]models.Hospital),
		requests: make(map[primitive.ObjectID]models.BloodTransferRequest),
		sos:      make(map[primitive.ObjectID]models.SOSRequest),
		now:      time.Now,
	}
}

// Accounts, Hospitals, BloodRequests and SOS expose the collections with the
// same method sets as the Mongo stores.
func (s *Store) Accounts() *Accounts           { return &Accounts{s} }
func (s *Store) Hospitals() *Hospitals         { return &Hospitals{s} }
func (s *Store) BloodRequests() *BloodRequests { return &BloodRequests{s} }
func (s *Store) SOS() *SOS                     { return &SOS{s} }

type Accounts struct{ s *Store }

func (a *Accounts) Create(_ context.Context, acc *models.Account) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, existing := range a.s.accounts {
		if existing.Email == acc.Email && existing.Role == acc.Role {
			return database.ErrDuplicate
		}
	}
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	a.s.accounts[acc.ID] = *acc
	return nil
}

func (a *Accounts) Delete(_ context.Context, id primitive.ObjectID) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.accounts[id]; !ok {
		return database.ErrNotFound
	}
	delete(a.s.accounts, id)
	return nil
}

func (a *Accounts) FindByEmailRole(_ context.Context, email, role string) (*models.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, acc := range a.s.accounts {
		if acc.Email == email && acc.Role == role {
			out := acc
			return &out, nil
		}
	}
	return nil, database.ErrNotFound
}

type Hospitals struct{ s *Store }

func cloneHospital(h models.Hospital) models.Hospital {
	inv := make(models.Inventory, len(h.BloodInventory))
	for k, v := range h.BloodInventory {
		inv[k] = v
	}
	h.BloodInventory = inv
	if h.Location != nil {
		loc := *h.Location
		h.Location = &loc
	}
	h.Beds = append([]models.Bed(nil), h.Beds...)
	h.Staff = append([]models.StaffMember(nil), h.Staff...)
	return h
}

func (hs *Hospitals) Create(_ context.Context, h *models.Hospital) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	for _, existing := range hs.s.hosps {
		if existing.OwnerID == h.OwnerID {
			return database.ErrDuplicate
		}
	}
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	if h.BloodInventory == nil {
		h.BloodInventory = models.Inventory{}
	}
	hs.s.hosps[h.ID] = cloneHospital(*h)
	return nil
}

func (hs *Hospitals) FindByID(_ context.Context, id primitive.ObjectID) (*models.Hospital, error) {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.s.hosps[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := cloneHospital(h)
	return &out, nil
}

func (hs *Hospitals) FindByOwner(_ context.Context, ownerID string) (*models.Hospital, error) {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.byOwner(ownerID)
	if !ok {
		return nil, database.ErrNotFound
	}
	out := cloneHospital(h)
	return &out, nil
}

func (hs *Hospitals) byOwner(ownerID string) (models.Hospital, bool) {
	for _, h := range hs.s.hosps {
		if h.OwnerID == ownerID {
			return h, true
		}
	}
	return models.Hospital{}, false
}

func (hs *Hospitals) List(ctx context.Context) ([]models.Hospital, error) {
	return hs.Search(ctx, database.HospitalFilter{})
}

func (hs *Hospitals) Search(_ context.Context, f database.HospitalFilter) ([]models.Hospital, error) {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	type hit struct {
		h    models.Hospital
		dist float64
	}
	var hits []hit
	for _, h := range hs.s.hosps {
		if f.BloodType != "" && h.Units(f.BloodType) <= 0 {
			continue
		}
		var d float64
		if f.Near != nil {
			if h.Location == nil {
				continue
			}
			d = geo.DistanceKm(*f.Near, *h.Location) * 1000
			if d > f.RadiusMeters {
				continue
			}
		}
		hits = append(hits, hit{h: cloneHospital(h), dist: d})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].h.CreatedAt.Before(hits[j].h.CreatedAt)
	})

	out := make([]models.Hospital, 0, len(hits))
	for _, x := range hits {
		out = append(out, x.h)
	}
	return out, nil
}

func (hs *Hospitals) Update(_ context.Context, id primitive.ObjectID, p database.HospitalPatch) (*models.Hospital, error) {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.s.hosps[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Address != nil {
		h.Address = *p.Address
	}
	if p.Phone != nil {
		h.Phone = *p.Phone
	}
	if p.Email != nil {
		h.Email = *p.Email
	}
	if p.City != nil {
		h.City = *p.City
	}
	if p.SetLocation || p.Location != nil {
		h.Location = p.Location
	}
	if p.Beds != nil {
		h.Beds = *p.Beds
	}
	if p.Staff != nil {
		h.Staff = *p.Staff
	}
	h.UpdatedAt = hs.s.now()
	hs.s.hosps[id] = cloneHospital(h)
	out := cloneHospital(h)
	return &out, nil
}

func (hs *Hospitals) Delete(_ context.Context, id primitive.ObjectID) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	if _, ok := hs.s.hosps[id]; !ok {
		return database.ErrNotFound
	}
	delete(hs.s.hosps, id)
	return nil
}

func (hs *Hospitals) SetInventoryEntry(_ context.Context, id primitive.ObjectID, e models.InventoryEntry) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.s.hosps[id]
	if !ok {
		return database.ErrNotFound
	}
	h.BloodInventory[e.BloodType] = e
	h.UpdatedAt = hs.s.now()
	hs.s.hosps[id] = h
	return nil
}

func (hs *Hospitals) SetInventoryExpiry(_ context.Context, id primitive.ObjectID, bloodType string, expiry time.Time) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.s.hosps[id]
	if !ok {
		return database.ErrNotFound
	}
	e, ok := h.BloodInventory[bloodType]
	if !ok {
		return database.ErrNotFound
	}
	now := hs.s.now()
	e.ExpiryDate = &expiry
	e.LastUpdated = now
	h.BloodInventory[bloodType] = e
	h.UpdatedAt = now
	hs.s.hosps[id] = h
	return nil
}

func (hs *Hospitals) RemoveInventoryEntry(_ context.Context, id primitive.ObjectID, bloodType string) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.s.hosps[id]
	if !ok {
		return database.ErrNotFound
	}
	if _, ok := h.BloodInventory[bloodType]; !ok {
		return database.ErrNotFound
	}
	delete(h.BloodInventory, bloodType)
	h.UpdatedAt = hs.s.now()
	hs.s.hosps[id] = h
	return nil
}

func (hs *Hospitals) DecrementUnits(_ context.Context, ownerID, bloodType string, n int) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.byOwner(ownerID)
	if !ok {
		return database.ErrConditionFailed
	}
	e, ok := h.BloodInventory[bloodType]
	if !ok || e.Units < n {
		return database.ErrConditionFailed
	}
	now := hs.s.now()
	e.Units -= n
	e.LastUpdated = now
	h.BloodInventory[bloodType] = e
	h.UpdatedAt = now
	hs.s.hosps[h.ID] = h
	return nil
}

func (hs *Hospitals) IncrementUnits(_ context.Context, ownerID, bloodType string, n int) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	h, ok := hs.byOwner(ownerID)
	if !ok {
		return database.ErrNotFound
	}
	e, ok := h.BloodInventory[bloodType]
	if !ok {
		return database.ErrNotFound
	}
	now := hs.s.now()
	e.Units += n
	e.LastUpdated = now
	h.BloodInventory[bloodType] = e
	h.UpdatedAt = now
	hs.s.hosps[h.ID] = h
	return nil
}

type BloodRequests struct{ s *Store }

func (b *BloodRequests) Create(_ context.Context, r *models.BloodTransferRequest) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	b.s.requests[r.ID] = *r
	return nil
}

func (b *BloodRequests) FindByID(_ context.Context, id primitive.ObjectID) (*models.BloodTransferRequest, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	r, ok := b.s.requests[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &r, nil
}

func (b *BloodRequests) ListByRequesting(_ context.Context, hospitalID string) ([]models.BloodTransferRequest, error) {
	return b.list(func(r models.BloodTransferRequest) bool { return r.RequestingHospitalID == hospitalID }), nil
}

func (b *BloodRequests) ListByTarget(_ context.Context, hospitalID string) ([]models.BloodTransferRequest, error) {
	return b.list(func(r models.BloodTransferRequest) bool { return r.TargetHospitalID == hospitalID }), nil
}

func (b *BloodRequests) list(keep func(models.BloodTransferRequest) bool) []models.BloodTransferRequest {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out := []models.BloodTransferRequest{}
	for _, r := range b.s.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *BloodRequests) Transition(_ context.Context, id primitive.ObjectID, status string, message *string) (*models.BloodTransferRequest, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	r, ok := b.s.requests[id]
	if !ok || r.Status != models.TransferPending {
		return nil, database.ErrConditionFailed
	}
	r.Status = status
	r.ResponseMessage = message
	r.UpdatedAt = b.s.now()
	b.s.requests[id] = r
	return &r, nil
}

type SOS struct{ s *Store }

func cloneSOS(r models.SOSRequest) models.SOSRequest {
	responses := make(map[string]models.HospitalResponse, len(r.HospitalResponses))
	for k, v := range r.HospitalResponses {
		responses[k] = v
	}
	r.HospitalResponses = responses
	return r
}

func (x *SOS) Create(_ context.Context, r *models.SOSRequest) error {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if r.HospitalResponses == nil {
		r.HospitalResponses = map[string]models.HospitalResponse{}
	}
	x.s.sos[r.ID] = cloneSOS(*r)
	return nil
}

func (x *SOS) FindByID(_ context.Context, id primitive.ObjectID) (*models.SOSRequest, error) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	r, ok := x.s.sos[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := cloneSOS(r)
	return &out, nil
}

func (x *SOS) SetResponses(_ context.Context, id primitive.ObjectID, responses map[string]models.HospitalResponse) error {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	r, ok := x.s.sos[id]
	if !ok {
		return database.ErrNotFound
	}
	r.HospitalResponses = responses
	r.UpdatedAt = x.s.now()
	x.s.sos[id] = cloneSOS(r)
	return nil
}

func (x *SOS) SetResponse(_ context.Context, id primitive.ObjectID, resp models.HospitalResponse) (*models.SOSRequest, error) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	r, ok := x.s.sos[id]
	if !ok {
		return nil, database.ErrConditionFailed
	}
	slot, ok := r.HospitalResponses[resp.HospitalID]
	if !ok || slot.Status != models.ResponsePending {
		return nil, database.ErrConditionFailed
	}
	r = cloneSOS(r)
	r.HospitalResponses[resp.HospitalID] = resp
	r.UpdatedAt = x.s.now()
	x.s.sos[id] = r
	out := cloneSOS(r)
	return &out, nil
}

func (x *SOS) ListPendingForHospital(_ context.Context, hospitalID string) ([]models.SOSRequest, error) {
	return x.list(func(r models.SOSRequest) bool {
		slot, ok := r.HospitalResponses[hospitalID]
		return ok && slot.Status == models.ResponsePending
	}), nil
}

func (x *SOS) ListByPatient(_ context.Context, patientID string) ([]models.SOSRequest, error) {
	return x.list(func(r models.SOSRequest) bool { return r.PatientID == patientID }), nil
}

func (x *SOS) list(keep func(models.SOSRequest) bool) []models.SOSRequest {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	out := []models.SOSRequest{}
	for _, r := range x.s.sos {
		if keep(r) {
			out = append(out, cloneSOS(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
