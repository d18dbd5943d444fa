package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/model"
)

// BookingStore persists bookings and their transition history. Bookings are
// never deleted.
type BookingStore struct {
	db *gorm.DB
}

// NewBookingStore creates a GORM-backed booking store. db may be a transaction.
func NewBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{db: db}
}

// BookingFilter narrows List. Zero values are ignored.
type BookingFilter struct {
	ParentID    int64
	CaregiverID int64
	Status      model.BookingStatus
}

// Create inserts a new booking.
func (s *BookingStore) Create(ctx context.Context, b *model.Booking) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create booking for parent %d: %w", b.ParentID, err)
	}
	return nil
}

// Get loads one booking.
func (s *BookingStore) Get(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperror.NotFoundError{Resource: "booking", ID: id}
		}
		return nil, fmt.Errorf("failed to load booking %d: %w", id, err)
	}
	return &b, nil
}

// List returns bookings matching f ordered by start time.
func (s *BookingStore) List(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	q := s.db.WithContext(ctx).Model(&model.Booking{})
	if f.ParentID > 0 {
		q = q.Where("parent_id = ?", f.ParentID)
	}
	if f.CaregiverID > 0 {
		q = q.Where("caregiver_id = ?", f.CaregiverID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	bookings := make([]model.Booking, 0)
	if err := q.Order("start_at ASC, id ASC").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// CompareAndSetStatus moves booking id from one status to another only if it
// is still in from. It reports whether the swap happened.
func (s *BookingStore) CompareAndSetStatus(ctx context.Context, id int64, from, to model.BookingStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case model.StatusConfirmed:
		updates["confirmed_at"] = at
	case model.StatusInProgress:
		updates["started_at"] = at
	case model.StatusCompleted:
		updates["completed_at"] = at
	case model.StatusCancelled:
		updates["cancelled_at"] = at
	}

	res := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to move booking %d from %s to %s: %w", id, from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordTransition appends to the booking's history.
func (s *BookingStore) RecordTransition(ctx context.Context, t *model.BookingTransition) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to record transition for booking %d: %w", t.BookingID, err)
	}
	return nil
}

// Transitions returns the booking's history, oldest first.
func (s *BookingStore) Transitions(ctx context.Context, bookingID int64) ([]model.BookingTransition, error) {
	history := make([]model.BookingTransition, 0)
	if err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("occurred_at ASC, id ASC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load history for booking %d: %w", bookingID, err)
	}
	return history, nil
}
