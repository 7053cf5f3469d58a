package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/models"
	redisclient "blooddoc-api-server/internal/redis"
)

func TestTransfer_ApproveFulfillsAndDecrements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.hospitalAt(t, "Requester", 80.27, 13.08, nil)
	target := f.hospitalAt(t, "Target", 80.28, 13.09, map[string]int{"O+": 5})

	req, err := f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: target.ID, BloodType: "O+", UnitsRequested: 3})
	require.NoError(t, err)
	assert.Equal(t, models.TransferPending, req.Status)

	out, err := f.transfers.Respond(ctx, target, req.ID.Hex(), RespondInput{Status: models.TransferApproved, Message: ptr("on the way")})
	require.NoError(t, err)
	assert.Equal(t, models.TransferFulfilled, out.Status)
	require.NotNil(t, out.ResponseMessage)
	assert.Equal(t, "on the way", *out.ResponseMessage)
	assert.Equal(t, 2, f.units(t, target, "O+"))
	assert.Equal(t, 0, f.units(t, requester, "O+"))

	assert.Equal(t, []recordedEvent{
		{UserID: target.ID, Event: EventBloodRequestCreated},
		{UserID: requester.ID, Event: EventBloodRequestResponded},
	}, f.events.all())

	_, err = f.transfers.Respond(ctx, target, req.ID.Hex(), RespondInput{Status: models.TransferDenied})
	requireKind(t, err, apperr.KindAlreadyProcessed)
}

func TestTransfer_InsufficientStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.hospitalAt(t, "Requester", 80.27, 13.08, nil)
	target := f.hospitalAt(t, "Target", 80.28, 13.09, map[string]int{"O+": 5})

	req, err := f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: target.ID, BloodType: "O+", UnitsRequested: 10})
	require.NoError(t, err)

	_, err = f.transfers.Respond(ctx, target, req.ID.Hex(), RespondInput{Status: models.TransferApproved})
	requireKind(t, err, apperr.KindInsufficientInventory)

	stored, err := f.store.BloodRequests().FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferPending, stored.Status)
	assert.Equal(t, 5, f.units(t, target, "O+"))

	// A missing blood type entry is also insufficient.
	req2, err := f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: target.ID, BloodType: "AB-", UnitsRequested: 1})
	require.NoError(t, err)
	_, err = f.transfers.Respond(ctx, target, req2.ID.Hex(), RespondInput{Status: models.TransferApproved})
	requireKind(t, err, apperr.KindInsufficientInventory)
}

func TestTransfer_Deny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.hospitalAt(t, "Requester", 80.27, 13.08, nil)
	target := f.hospitalAt(t, "Target", 80.28, 13.09, map[string]int{"O+": 5})

	req, err := f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: target.ID, BloodType: "O+", UnitsRequested: 2})
	require.NoError(t, err)

	out, err := f.transfers.Respond(ctx, admin(), req.ID.Hex(), RespondInput{Status: models.TransferDenied, Message: ptr("  ")})
	require.NoError(t, err)
	assert.Equal(t, models.TransferDenied, out.Status)
	assert.Nil(t, out.ResponseMessage)
	assert.Equal(t, 5, f.units(t, target, "O+"))
}

func TestTransfer_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.hospitalAt(t, "Requester", 80.27, 13.08, nil)
	target := f.hospitalAt(t, "Target", 80.28, 13.09, nil)

	_, err := f.transfers.Create(ctx, patient(), CreateTransferInput{TargetHospitalID: target.ID, BloodType: "O+", UnitsRequested: 1})
	requireKind(t, err, apperr.KindForbidden)

	for name, in := range map[string]CreateTransferInput{
		"no target":   {BloodType: "O+", UnitsRequested: 1},
		"bad type":    {TargetHospitalID: target.ID, BloodType: "O", UnitsRequested: 1},
		"zero units":  {TargetHospitalID: target.ID, BloodType: "O+"},
		"self target": {TargetHospitalID: requester.ID, BloodType: "O+", UnitsRequested: 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.transfers.Create(ctx, requester, in)
			requireKind(t, err, apperr.KindValidation)
		})
	}

	_, err = f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: primitive.NewObjectID().Hex(), BloodType: "O+", UnitsRequested: 1})
	requireKind(t, err, apperr.KindNotFound)
}

func TestTransfer_RespondGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.hospitalAt(t, "Requester", 80.27, 13.08, nil)
	target := f.hospitalAt(t, "Target", 80.28, 13.09, map[string]int{"O+": 5})
	req, err := f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: target.ID, BloodType: "O+", UnitsRequested: 1})
	require.NoError(t, err)

	_, err = f.transfers.Respond(ctx, target, req.ID.Hex(), RespondInput{Status: models.TransferFulfilled})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.transfers.Respond(ctx, target, "xyz", RespondInput{Status: models.TransferApproved})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.transfers.Respond(ctx, target, primitive.NewObjectID().Hex(), RespondInput{Status: models.TransferApproved})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.transfers.Respond(ctx, requester, req.ID.Hex(), RespondInput{Status: models.TransferApproved})
	requireKind(t, err, apperr.KindForbidden)
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestTransfer_LockHeldIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := f.hospitalAt(t, "Requester", 80.27, 13.08, nil)
	target := f.hospitalAt(t, "Target", 80.28, 13.09, map[string]int{"O+": 5})
	req, err := f.transfers.Create(ctx, requester, CreateTransferInput{TargetHospitalID: target.ID, BloodType: "O+", UnitsRequested: 1})
	require.NoError(t, err)

	busy := NewTransferService(f.store.Hospitals(), f.store.BloodRequests(), busyLocker{}, nil)
	_, err = busy.Respond(ctx, target, req.ID.Hex(), RespondInput{Status: models.TransferApproved})
	requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, 5, f.units(t, target, "O+"))
}

func TestTransfer_Lists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.hospitalAt(t, "A", 80.27, 13.08, nil)
	b := f.hospitalAt(t, "B", 80.28, 13.09, nil)

	_, err := f.transfers.Create(ctx, a, CreateTransferInput{TargetHospitalID: b.ID, BloodType: "O+", UnitsRequested: 1})
	require.NoError(t, err)

	out, err := f.transfers.ListOutgoing(ctx, a, a.ID)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	in, err := f.transfers.ListIncoming(ctx, b, b.ID)
	require.NoError(t, err)
	assert.Len(t, in, 1)

	none, err := f.transfers.ListIncoming(ctx, a, a.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.transfers.ListOutgoing(ctx, b, a.ID)
	requireKind(t, err, apperr.KindForbidden)
}
