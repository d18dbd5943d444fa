package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/db/dbtest"
	"childcare-scheduling-backend/internal/model"
)

func newBooking(parentID int64, status model.BookingStatus) *model.Booking {
	start := time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	return &model.Booking{
		CaregiverID:   1,
		ParentID:      parentID,
		SlotID:        1,
		StartAt:       start,
		EndAt:         start.Add(2 * time.Hour),
		ChildrenCount: 1,
		HourlyRate:    decimal.NewFromInt(25),
		TotalHours:    decimal.NewFromInt(2),
		TotalAmount:   decimal.NewFromInt(50),
		Status:        status,
		RequestedAt:   time.Now().UTC(),
	}
}

func TestBookingStore_CompareAndSetStatus(t *testing.T) {
	gormDB := dbtest.New(t)
	bookings := NewBookingStore(gormDB)
	ctx := context.Background()

	b := newBooking(5, model.StatusPending)
	require.NoError(t, bookings.Create(ctx, b))

	at := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	ok, err := bookings.CompareAndSetStatus(ctx, b.ID, model.StatusPending, model.StatusConfirmed, at)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second writer holding the stale "from" state loses.
	ok, err = bookings.CompareAndSetStatus(ctx, b.ID, model.StatusPending, model.StatusCancelled, at)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, at.Equal(*got.ConfirmedAt))
	assert.Nil(t, got.CancelledAt)
}

func TestBookingStore_ListAndHistory(t *testing.T) {
	gormDB := dbtest.New(t)
	bookings := NewBookingStore(gormDB)
	ctx := context.Background()

	for _, b := range []*model.Booking{
		newBooking(5, model.StatusPending),
		newBooking(5, model.StatusCancelled),
		newBooking(6, model.StatusPending),
	} {
		require.NoError(t, bookings.Create(ctx, b))
	}

	got, err := bookings.List(ctx, BookingFilter{ParentID: 5})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = bookings.List(ctx, BookingFilter{CaregiverID: 1, Status: model.StatusPending})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	now := time.Now().UTC()
	require.NoError(t, bookings.RecordTransition(ctx, &model.BookingTransition{BookingID: 1, ToStatus: model.StatusPending, Event: "request", OccurredAt: now}))
	require.NoError(t, bookings.RecordTransition(ctx, &model.BookingTransition{BookingID: 1, FromStatus: model.StatusPending, ToStatus: model.StatusConfirmed, Event: "accept", OccurredAt: now.Add(time.Minute)}))

	history, err := bookings.Transitions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "accept", history[1].Event)

	_, err = bookings.Get(ctx, 404)
	var nf *apperror.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
