package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/models"
	redisclient "blooddoc-api-server/internal/redis"
)

type CreateSOSInput struct {
	BloodType string
	Urgency   string
	Message   *string
	Lat       *float64
	Lng       *float64
}

type SOSService struct {
	hospitals    HospitalRepository
	sos          SOSRepository
	locker       redisclient.Locker
	notifier     Notifier
	radiusMeters float64
	now          func() time.Time
}

func NewSOSService(hospitals HospitalRepository, sos SOSRepository, locker redisclient.Locker, notifier Notifier, radiusMeters float64) *SOSService {
	return &SOSService{
		hospitals:    hospitals,
		sos:          sos,
		locker:       locker,
		notifier:     notifierOrNop(notifier),
		radiusMeters: radiusMeters,
		now:          time.Now,
	}
}

// Create stores the SOS and fans it out to every hospital within the search radius.
func (s *SOSService) Create(ctx context.Context, caller auth.Principal, in CreateSOSInput) (*models.SOSRequest, error) {
	if caller.Role != models.RolePatient {
		return nil, apperr.Forbidden("Only patients can create SOS requests.")
	}
	if !models.IsValidBloodType(in.BloodType) {
		return nil, apperr.Validation("A valid blood type is required.")
	}
	if !models.IsValidUrgency(in.Urgency) {
		return nil, apperr.Validation("Urgency must be critical, urgent or moderate.")
	}
	if in.Lat == nil || in.Lng == nil {
		return nil, apperr.Validation("Location (lat, lng) is required.")
	}
	if *in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180 {
		return nil, apperr.Validation("Invalid latitude or longitude.")
	}

	now := s.now()
	req := &models.SOSRequest{
		PatientID:         caller.ID,
		BloodType:         in.BloodType,
		Urgency:           in.Urgency,
		Message:           optionalText(in.Message),
		Location:          models.NewGeoPoint(*in.Lng, *in.Lat),
		Status:            models.SOSActive,
		HospitalResponses: map[string]models.HospitalResponse{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.sos.Create(ctx, req); err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	nearby, err := s.hospitals.Search(ctx, database.HospitalFilter{Near: &req.Location, RadiusMeters: s.radiusMeters})
	if err != nil {
		return nil, apperr.Internal("Failed to find nearby hospitals", err)
	}

	responses := make(map[string]models.HospitalResponse, len(nearby))
	for _, h := range nearby {
		responses[h.OwnerID] = models.HospitalResponse{HospitalID: h.OwnerID, Status: models.ResponsePending}
	}
	if len(responses) > 0 {
		if err := s.sos.SetResponses(ctx, req.ID, responses); err != nil {
			return nil, apperr.Internal("Failed to record notified hospitals", err)
		}
	}
	req.HospitalResponses = responses

	log.Info().
		Str("sos_id", req.ID.Hex()).
		Str("patient_id", caller.ID).
		Str("blood_type", req.BloodType).
		Str("urgency", req.Urgency).
		Int("hospitals_notified", len(responses)).
		Msg("sos created")
	for hospitalID := range responses {
		s.notifier.Notify(hospitalID, EventSOSCreated, req)
	}
	return req, nil
}

// ListIncoming returns SOS requests still awaiting this hospital's answer.
func (s *SOSService) ListIncoming(ctx context.Context, caller auth.Principal, hospitalID string) ([]models.SOSRequest, error) {
	if !auth.Authorize(caller, hospitalID) {
		return nil, apperr.Forbidden("You can only view SOS requests for your own hospital.")
	}
	out, err := s.sos.ListPendingForHospital(ctx, hospitalID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return out, nil
}

func (s *SOSService) ListOwn(ctx context.Context, caller auth.Principal, patientID string) ([]models.SOSRequest, error) {
	if !auth.Authorize(caller, patientID) {
		return nil, apperr.Forbidden("You can only view your own SOS requests.")
	}
	out, err := s.sos.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return out, nil
}

// Respond records the caller hospital's answer. Accepting takes exactly one
// unit of the requested blood type from the caller's own inventory.
func (s *SOSService) Respond(ctx context.Context, caller auth.Principal, rawID string, in RespondInput) (*models.SOSRequest, error) {
	if in.Status != models.ResponseAccepted && in.Status != models.ResponseDenied {
		return nil, apperr.Validation("Status must be accepted or denied.")
	}
	id, err := parseID(rawID, "SOS request")
	if err != nil {
		return nil, err
	}

	req, err := s.sos.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "SOS request not found.")
	}
	slot, ok := req.HospitalResponses[caller.ID]
	if !ok {
		return nil, apperr.Forbidden("Your hospital was not notified of this SOS request.")
	}
	if slot.Status != models.ResponsePending {
		return nil, apperr.AlreadyProcessed("You have already responded to this SOS request.")
	}

	var updated *models.SOSRequest
	err = s.locker.WithLock(ctx, "sos:"+id.Hex()+":"+caller.ID, func(ctx context.Context) error {
		if in.Status == models.ResponseAccepted {
			if err := s.hospitals.DecrementUnits(ctx, caller.ID, req.BloodType, 1); err != nil {
				if errors.Is(err, database.ErrConditionFailed) {
					return apperr.InsufficientInventory("Insufficient " + req.BloodType + " units to accept this SOS request.")
				}
				return apperr.Internal("Server error", err)
			}
		}

		respondedAt := s.now()
		var serr error
		updated, serr = s.sos.SetResponse(ctx, id, models.HospitalResponse{
			HospitalID:      caller.ID,
			Status:          in.Status,
			ResponseMessage: optionalText(in.Message),
			RespondedAt:     &respondedAt,
		})
		if serr == nil {
			return nil
		}
		if in.Status == models.ResponseAccepted {
			if cerr := s.hospitals.IncrementUnits(context.WithoutCancel(ctx), caller.ID, req.BloodType, 1); cerr != nil {
				log.Error().Err(cerr).Str("sos_id", id.Hex()).Msg("failed to restore unit after lost transition")
			}
		}
		if errors.Is(serr, database.ErrConditionFailed) {
			return apperr.AlreadyProcessed("You have already responded to this SOS request.")
		}
		return apperr.Internal("Server error", serr)
	})
	if err != nil {
		return nil, storeErr(err, "SOS request not found.")
	}

	log.Info().
		Str("sos_id", id.Hex()).
		Str("hospital_id", caller.ID).
		Str("status", in.Status).
		Msg("sos responded")
	s.notifier.Notify(updated.PatientID, EventSOSResponded, updated)
	return updated, nil
}
