package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/models"
	redisclient "blooddoc-api-server/internal/redis"
)

type CreateTransferInput struct {
	TargetHospitalID string
	BloodType        string
	UnitsRequested   int
}

// RespondInput carries a decision on a transfer or SOS slot.
type RespondInput struct {
	Status  string
	Message *string
}

type TransferService struct {
	hospitals HospitalRepository
	requests  BloodRequestRepository
	locker    redisclient.Locker
	notifier  Notifier
	now       func() time.Time
}

func NewTransferService(hospitals HospitalRepository, requests BloodRequestRepository, locker redisclient.Locker, notifier Notifier) *TransferService {
	return &TransferService{
		hospitals: hospitals,
		requests:  requests,
		locker:    locker,
		notifier:  notifierOrNop(notifier),
		now:       time.Now,
	}
}

func (s *TransferService) Create(ctx context.Context, caller auth.Principal, in CreateTransferInput) (*models.BloodTransferRequest, error) {
	if caller.Role != models.RoleHospital {
		return nil, apperr.Forbidden("Only hospitals can create blood requests.")
	}
	in.TargetHospitalID = strings.TrimSpace(in.TargetHospitalID)
	if in.TargetHospitalID == "" {
		return nil, apperr.Validation("Target hospital ID is required.")
	}
	if !models.IsValidBloodType(in.BloodType) {
		return nil, apperr.Validation("Invalid blood type.")
	}
	if in.UnitsRequested <= 0 {
		return nil, apperr.Validation("Units requested must be a positive number.")
	}
	if in.TargetHospitalID == caller.ID {
		return nil, apperr.Validation("A hospital cannot request blood from itself.")
	}

	if _, err := s.hospitals.FindByOwner(ctx, in.TargetHospitalID); err != nil {
		return nil, storeErr(err, "Target hospital not found.")
	}

	now := s.now()
	req := &models.BloodTransferRequest{
		RequestingHospitalID: caller.ID,
		TargetHospitalID:     in.TargetHospitalID,
		BloodType:            in.BloodType,
		UnitsRequested:       in.UnitsRequested,
		Status:               models.TransferPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	log.Info().
		Str("request_id", req.ID.Hex()).
		Str("from", req.RequestingHospitalID).
		Str("to", req.TargetHospitalID).
		Str("blood_type", req.BloodType).
		Int("units", req.UnitsRequested).
		Msg("blood request created")
	s.notifier.Notify(req.TargetHospitalID, EventBloodRequestCreated, req)
	return req, nil
}

func (s *TransferService) ListOutgoing(ctx context.Context, caller auth.Principal, hospitalID string) ([]models.BloodTransferRequest, error) {
	if !auth.Authorize(caller, hospitalID) {
		return nil, apperr.Forbidden("You can only view your own hospital's requests.")
	}
	out, err := s.requests.ListByRequesting(ctx, hospitalID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return out, nil
}

func (s *TransferService) ListIncoming(ctx context.Context, caller auth.Principal, hospitalID string) ([]models.BloodTransferRequest, error) {
	if !auth.Authorize(caller, hospitalID) {
		return nil, apperr.Forbidden("You can only view your own hospital's requests.")
	}
	out, err := s.requests.ListByTarget(ctx, hospitalID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return out, nil
}

// Respond approves or denies a pending request. Approval moves units out of
// the target's inventory and lands the request directly on fulfilled.
func (s *TransferService) Respond(ctx context.Context, caller auth.Principal, rawID string, in RespondInput) (*models.BloodTransferRequest, error) {
	if in.Status != models.TransferApproved && in.Status != models.TransferDenied {
		return nil, apperr.Validation("Status must be approved or denied.")
	}
	id, err := parseID(rawID, "request")
	if err != nil {
		return nil, err
	}

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Blood request not found.")
	}
	if !auth.Authorize(caller, req.TargetHospitalID) {
		return nil, apperr.Forbidden("Only the target hospital can respond to this request.")
	}
	if req.Status != models.TransferPending {
		return nil, apperr.AlreadyProcessed("Blood request has already been processed.")
	}

	message := optionalText(in.Message)
	var updated *models.BloodTransferRequest
	err = s.locker.WithLock(ctx, "blood_request:"+id.Hex(), func(ctx context.Context) error {
		var terr error
		if in.Status == models.TransferDenied {
			updated, terr = s.transition(ctx, req, models.TransferDenied, message)
			return terr
		}

		if err := s.hospitals.DecrementUnits(ctx, req.TargetHospitalID, req.BloodType, req.UnitsRequested); err != nil {
			if errors.Is(err, database.ErrConditionFailed) {
				return apperr.InsufficientInventory("Insufficient " + req.BloodType + " units to fulfill this request.")
			}
			return apperr.Internal("Server error", err)
		}

		updated, terr = s.transition(ctx, req, models.TransferFulfilled, message)
		if terr != nil {
			if cerr := s.hospitals.IncrementUnits(context.WithoutCancel(ctx), req.TargetHospitalID, req.BloodType, req.UnitsRequested); cerr != nil {
				log.Error().Err(cerr).Str("request_id", id.Hex()).Msg("failed to restore units after lost transition")
			}
			return terr
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "Blood request not found.")
	}

	log.Info().Str("request_id", id.Hex()).Str("status", updated.Status).Msg("blood request responded")
	s.notifier.Notify(updated.RequestingHospitalID, EventBloodRequestResponded, updated)
	return updated, nil
}

func (s *TransferService) transition(ctx context.Context, req *models.BloodTransferRequest, status string, message *string) (*models.BloodTransferRequest, error) {
	updated, err := s.requests.Transition(ctx, req.ID, status, message)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return nil, apperr.AlreadyProcessed("Blood request has already been processed.")
		}
		return nil, apperr.Internal("Server error", err)
	}
	return updated, nil
}
