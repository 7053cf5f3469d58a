package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database/memstore"
	"blooddoc-api-server/internal/geo"
	"blooddoc-api-server/internal/models"
	redisclient "blooddoc-api-server/internal/redis"
)

type recordedEvent struct {
	UserID string
	Event  string
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Notify(userID, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: userID, Event: event})
}

func (r *recorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type fixture struct {
	store     *memstore.Store
	tokens    *auth.TokenManager
	accounts  *AccountService
	hospitals *HospitalService
	transfers *TransferService
	sos       *SOSService
	events    *recorder
}

const testRadius = 50_000

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	resolver := geo.NewStaticResolver(nil)
	locker := redisclient.NewLocalLocker(time.Second)
	events := &recorder{}
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	return &fixture{
		store:     store,
		tokens:    tokens,
		accounts:  NewAccountService(store.Accounts(), store.Hospitals(), tokens, resolver),
		hospitals: NewHospitalService(store.Hospitals(), resolver, testRadius),
		transfers: NewTransferService(store.Hospitals(), store.BloodRequests(), locker, events),
		sos:       NewSOSService(store.Hospitals(), store.SOS(), locker, events, testRadius),
		events:    events,
	}
}

// hospitalAt stores a hospital profile with stock and returns its owner principal.
func (f *fixture) hospitalAt(t *testing.T, name string, lng, lat float64, stock map[string]int) auth.Principal {
	t.Helper()
	owner := auth.Principal{ID: primitive.NewObjectID().Hex(), Name: name, Role: models.RoleHospital}
	loc := models.NewGeoPoint(lng, lat)
	inv := models.Inventory{}
	for bt, units := range stock {
		inv[bt] = models.InventoryEntry{ID: primitive.NewObjectID().Hex(), BloodType: bt, Units: units, LastUpdated: time.Now()}
	}
	require.NoError(t, f.store.Hospitals().Create(context.Background(), &models.Hospital{
		Name:           name,
		City:           "Chennai",
		Location:       &loc,
		BloodInventory: inv,
		OwnerID:        owner.ID,
		CreatedAt:      time.Now(),
	}))
	return owner
}

func (f *fixture) units(t *testing.T, owner auth.Principal, bloodType string) int {
	t.Helper()
	h, err := f.store.Hospitals().FindByOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	return h.Units(bloodType)
}

func patient() auth.Principal {
	return auth.Principal{ID: primitive.NewObjectID().Hex(), Name: "Pat", Role: models.RolePatient}
}

func admin() auth.Principal {
	return auth.Principal{ID: primitive.NewObjectID().Hex(), Name: "Root", Role: models.RoleAdmin}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}

func ptr[T any](v T) *T { return &v }
