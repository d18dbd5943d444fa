// Package booking implements the booking request flow and the booking
// lifecycle state machine on top of the capacity ledger.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/model"
	"childcare-scheduling-backend/internal/notification"
	"childcare-scheduling-backend/internal/store"
)

var errStatusChanged = errors.New("booking status changed concurrently")

// Service requests and transitions bookings.
type Service struct {
	db     *gorm.DB
	events notification.Publisher
	now    func() time.Time
}

// NewService wires a booking service. Events are published only after the
// change they describe has committed.
func NewService(db *gorm.DB, events notification.Publisher) *Service {
	if events == nil {
		events = notification.Discard
	}
	return &Service{db: db, events: events, now: time.Now}
}

// RequestInput is a parent's booking request.
type RequestInput struct {
	ParentID      int64
	CaregiverID   int64
	StartTime     time.Time
	EndTime       time.Time
	ChildrenCount int
}

func (in RequestInput) validate() error {
	switch {
	case in.ParentID <= 0:
		return apperror.Invalid("parentId", "is required")
	case in.CaregiverID <= 0:
		return apperror.Invalid("caregiverId", "is required")
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return apperror.Invalid("startTime", "and endTime are required")
	case !in.StartTime.Before(in.EndTime):
		return apperror.Invalid("startTime", "must be before endTime")
	case in.ChildrenCount < 1:
		return apperror.Invalid("childrenCount", "must be at least 1")
	}
	return nil
}

// Request creates a PENDING booking holding one unit of capacity on the first
// of the caregiver's slots that covers the requested window and has room.
// If every covering slot is full nothing is persisted.
func (s *Service) Request(ctx context.Context, in RequestInput) (*model.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	start := in.StartTime.UTC().Truncate(time.Second)
	end := in.EndTime.UTC().Truncate(time.Second)
	now := s.now().UTC().Truncate(time.Second)

	var b *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		covering, err := store.NewSlotStore(tx).Covering(ctx, in.CaregiverID, start, end)
		if err != nil {
			return err
		}
		if len(covering) == 0 {
			return &apperror.NotFoundError{Resource: "slot covering the requested time"}
		}

		fitting := covering[:0]
		for _, slot := range covering {
			if in.ChildrenCount <= slot.TotalCapacity {
				fitting = append(fitting, slot)
			}
		}
		if len(fitting) == 0 {
			return apperror.Invalid("childrenCount", fmt.Sprintf("exceeds the slot capacity of %d", covering[0].TotalCapacity))
		}

		bookings := store.NewBookingStore(tx)
		ledger := store.NewLedger(tx)

		b = &model.Booking{
			CaregiverID:   in.CaregiverID,
			ParentID:      in.ParentID,
			StartAt:       start,
			EndAt:         end,
			ChildrenCount: in.ChildrenCount,
			Status:        model.StatusPending,
			RequestedAt:   now,
			UpdatedAt:     now,
		}
		price(b, fitting[0])
		if err := bookings.Create(ctx, b); err != nil {
			return err
		}

		for i, slot := range fitting {
			_, err := ledger.Reserve(ctx, slot.ID, b.ID)
			var full *apperror.SlotFullError
			if errors.As(err, &full) {
				continue
			}
			if err != nil {
				return err
			}
			if i > 0 {
				price(b, slot)
				if err := tx.Model(b).Updates(map[string]any{
					"slot_id":      b.SlotID,
					"hourly_rate":  b.HourlyRate,
					"total_amount": b.TotalAmount,
				}).Error; err != nil {
					return fmt.Errorf("failed to move booking %d to slot %d: %w", b.ID, slot.ID, err)
				}
			}
			return bookings.RecordTransition(ctx, &model.BookingTransition{
				BookingID:  b.ID,
				ToStatus:   model.StatusPending,
				Event:      string(eventRequest),
				OccurredAt: now,
			})
		}

		if len(fitting) == 1 {
			return &apperror.SlotFullError{SlotID: fitting[0].ID}
		}
		return &apperror.SlotFullError{}
	})
	if err != nil {
		return nil, err
	}

	s.emit(notification.BookingRequested, b.CaregiverID, b)
	return b, nil
}

// price stamps the slot and its rate onto b.
func price(b *model.Booking, slot model.AvailabilitySlot) {
	seconds := decimal.NewFromInt(int64(b.EndAt.Sub(b.StartAt) / time.Second))
	b.SlotID = slot.ID
	b.HourlyRate = slot.BaseRate
	b.TotalHours = seconds.Div(decimal.NewFromInt(3600)).Round(2)
	b.TotalAmount = b.HourlyRate.Mul(b.TotalHours).Round(2)
}

// Transition applies ev to the booking. Reaching a terminal status returns
// the booking's capacity in the same transaction as the status change.
func (s *Service) Transition(ctx context.Context, bookingID int64, ev Event) (*model.Booking, error) {
	bookings := store.NewBookingStore(s.db)
	b, err := bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	to, ok := Next(b.Status, ev)
	if !ok {
		return nil, &apperror.InvalidTransitionError{BookingID: b.ID, Current: string(b.Status), Event: string(ev)}
	}
	now := s.now().UTC().Truncate(time.Second)
	if ev == EventStart && now.Before(b.StartAt) {
		return nil, &apperror.InvalidTransitionError{
			BookingID: b.ID,
			Current:   string(b.Status),
			Event:     string(ev),
			Reason:    "the booking has not reached its start time",
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txBookings := store.NewBookingStore(tx)
		swapped, err := txBookings.CompareAndSetStatus(ctx, b.ID, b.Status, to, now)
		if err != nil {
			return err
		}
		if !swapped {
			return errStatusChanged
		}
		if to.Terminal() {
			if _, err := store.NewLedger(tx).ReleaseForBooking(ctx, b.ID); err != nil {
				return err
			}
		}
		return txBookings.RecordTransition(ctx, &model.BookingTransition{
			BookingID:  b.ID,
			FromStatus: b.Status,
			ToStatus:   to,
			Event:      string(ev),
			OccurredAt: now,
		})
	})
	if errors.Is(err, errStatusChanged) {
		fresh, getErr := bookings.Get(ctx, bookingID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &apperror.InvalidTransitionError{
			BookingID: b.ID,
			Current:   string(fresh.Status),
			Event:     string(ev),
			Reason:    "the booking was changed by another request",
		}
	}
	if err != nil {
		return nil, err
	}

	updated, err := bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.emit(notifications[ev], updated.ParentID, updated)
	return updated, nil
}

// Get loads one booking.
func (s *Service) Get(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return store.NewBookingStore(s.db).Get(ctx, bookingID)
}

// List returns bookings for a parent or a caregiver, optionally by status.
func (s *Service) List(ctx context.Context, f store.BookingFilter) ([]model.Booking, error) {
	if f.ParentID <= 0 && f.CaregiverID <= 0 {
		return nil, apperror.Invalid("", "parentId or caregiverId is required")
	}
	return store.NewBookingStore(s.db).List(ctx, f)
}

// History returns the booking's status changes, oldest first.
func (s *Service) History(ctx context.Context, bookingID int64) ([]model.BookingTransition, error) {
	if _, err := s.Get(ctx, bookingID); err != nil {
		return nil, err
	}
	return store.NewBookingStore(s.db).Transitions(ctx, bookingID)
}

func (s *Service) emit(t notification.EventType, recipient int64, b *model.Booking) {
	s.events.Publish(notification.Event{
		Type:        t,
		RecipientID: recipient,
		Payload: map[string]any{
			"bookingId": b.ID,
			"slotId":    b.SlotID,
			"status":    b.Status,
			"startTime": b.StartAt,
			"endTime":   b.EndAt,
		},
		OccurredAt: s.now().UTC(),
	})
}
