package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
)

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(services.Options{})
	event, err := f.newEvent(ctx)
	require.NoError(t, err)

	_, err = f.app.Ledger.Record(ctx, services.RecordInput{EventID: event.ID, Amount: 0, PaymentRef: "r"})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.app.Ledger.Record(ctx, services.RecordInput{EventID: event.ID, Amount: -5, PaymentRef: "r"})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.app.Ledger.Record(ctx, services.RecordInput{EventID: event.ID, Amount: 100, PaymentRef: "  "})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.app.Ledger.Record(ctx, services.RecordInput{EventID: event.ID, Amount: 100, PaymentRef: "r", Currency: "USD"})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.app.Ledger.Record(ctx, services.RecordInput{EventID: primitive.NewObjectID(), Amount: 100, PaymentRef: "r"})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRecordSameReferenceTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(services.Options{})
	first, err := f.newEvent(ctx)
	require.NoError(t, err)
	second, err := f.newEvent(ctx)
	require.NoError(t, err)

	c1, err := f.app.Ledger.Record(ctx, services.RecordInput{EventID: first.ID, Amount: 500, PaymentRef: "ref-1", Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, models.ContributionPending, c1.Status)
	assert.Equal(t, "CARD", c1.Method)
	assert.Equal(t, "KES", c1.Currency)

	c2, err := f.app.Ledger.Record(ctx, services.RecordInput{EventID: first.ID, Amount: 500, PaymentRef: "ref-1"})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	_, err = f.app.Ledger.Record(ctx, services.RecordInput{EventID: second.ID, Amount: 500, PaymentRef: "ref-1"})
	assert.ErrorIs(t, err, services.ErrValidation)

	list, err := f.app.Ledger.List(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFailLeavesTotalUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(services.Options{})
	event, err := f.newEvent(ctx)
	require.NoError(t, err)
	require.NoError(t, f.pledge(ctx, event.ID, "ref-1", 700))
	require.NoError(t, f.pledge(ctx, event.ID, "ref-2", 300))

	failed, err := f.app.Ledger.Fail(ctx, "ref-1", "insufficient funds")
	require.NoError(t, err)
	assert.Equal(t, models.ContributionFailed, failed.Status)
	assert.Equal(t, "insufficient funds", failed.FailureReason)

	// A second failure report is a no-op.
	again, err := f.app.Ledger.Fail(ctx, "ref-1", "timeout")
	require.NoError(t, err)
	assert.Equal(t, "insufficient funds", again.FailureReason)

	stored, err := f.app.Events.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentAmount)

	_, err = f.app.Ledger.Confirm(ctx, "ref-2", 300)
	require.NoError(t, err)
	_, err = f.app.Ledger.Fail(ctx, "ref-2", "chargeback")
	assert.ErrorIs(t, err, services.ErrInvalidState)

	_, err = f.app.Ledger.Fail(ctx, "missing", "")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestConfirmLateSuccessAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(services.Options{})
	event, err := f.newEvent(ctx)
	require.NoError(t, err)
	require.NoError(t, f.pledge(ctx, event.ID, "ref-1", 700))

	_, err = f.app.Ledger.Fail(ctx, "ref-1", "timeout")
	require.NoError(t, err)

	res, err := f.app.Ledger.Confirm(ctx, "ref-1", 650)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.ContributionConfirmed, res.Contribution.Status)
	assert.Equal(t, int64(650), res.Contribution.Amount)
	assert.Empty(t, res.Contribution.FailureReason)
	assert.Equal(t, int64(650), res.Event.CurrentAmount)
	assert.Equal(t, f.confirmedSum(ctx, event.ID), res.Event.CurrentAmount)
}

func TestConfirmValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(services.Options{})

	_, err := f.app.Ledger.Confirm(ctx, "", 100)
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = f.app.Ledger.Confirm(ctx, "ref", 0)
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = f.app.Ledger.Confirm(ctx, "unknown", 100)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
