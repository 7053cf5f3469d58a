// Package service holds the BloodDoc workflows: accounts, hospital profiles
// and inventory, blood transfers, SOS requests and the AI/SMS pass-throughs.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/models"
	redisclient "blooddoc-api-server/internal/redis"
)

type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	FindByEmailRole(ctx context.Context, email, role string) (*models.Account, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type HospitalRepository interface {
	Create(ctx context.Context, h *models.Hospital) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error)
	FindByOwner(ctx context.Context, ownerID string) (*models.Hospital, error)
	List(ctx context.Context) ([]models.Hospital, error)
	Search(ctx context.Context, f database.HospitalFilter) ([]models.Hospital, error)
	Update(ctx context.Context, id primitive.ObjectID, p database.HospitalPatch) (*models.Hospital, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	SetInventoryEntry(ctx context.Context, id primitive.ObjectID, e models.InventoryEntry) error
	SetInventoryExpiry(ctx context.Context, id primitive.ObjectID, bloodType string, expiry time.Time) error
	RemoveInventoryEntry(ctx context.Context, id primitive.ObjectID, bloodType string) error
	DecrementUnits(ctx context.Context, ownerID, bloodType string, n int) error
	IncrementUnits(ctx context.Context, ownerID, bloodType string, n int) error
}

type BloodRequestRepository interface {
	Create(ctx context.Context, r *models.BloodTransferRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.BloodTransferRequest, error)
	ListByRequesting(ctx context.Context, hospitalID string) ([]models.BloodTransferRequest, error)
	ListByTarget(ctx context.Context, hospitalID string) ([]models.BloodTransferRequest, error)
	Transition(ctx context.Context, id primitive.ObjectID, status string, message *string) (*models.BloodTransferRequest, error)
}

type SOSRepository interface {
	Create(ctx context.Context, r *models.SOSRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.SOSRequest, error)
	SetResponses(ctx context.Context, id primitive.ObjectID, responses map[string]models.HospitalResponse) error
	SetResponse(ctx context.Context, id primitive.ObjectID, resp models.HospitalResponse) (*models.SOSRequest, error)
	ListPendingForHospital(ctx context.Context, hospitalID string) ([]models.SOSRequest, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.SOSRequest, error)
}

// Notifier pushes real-time events to a connected account. Delivery is best effort.
type Notifier interface {
	Notify(userID, event string, payload any)
}

// Event names pushed over the notification hub.
const (
	EventSOSCreated            = "sos.created"
	EventSOSResponded          = "sos.responded"
	EventBloodRequestCreated   = "blood_request.created"
	EventBloodRequestResponded = "blood_request.responded"
)

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, any) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func parseID(raw, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid %s ID format.", what)
	}
	return id, nil
}

// storeErr maps storage sentinels onto the error taxonomy.
func storeErr(err error, notFound string) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return apperr.Conflict("This request is being processed, retry shortly.")
	default:
		return apperr.Internal("Server error", err)
	}
}

func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
