package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/model"
)

// Ledger is the only writer of AvailabilitySlot.CurrentOccupancy. Every
// change is a single conditional UPDATE evaluated by the database, so
// concurrent reservations on the same slot are serialized by its row lock.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger creates a ledger over db. db may be a transaction, in which case
// each operation runs in a savepoint of it.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Reserve takes one unit of capacity on slotID for bookingID.
func (l *Ledger) Reserve(ctx context.Context, slotID, bookingID int64) (*model.Reservation, error) {
	var reservation *model.Reservation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AvailabilitySlot{}).
			Where("id = ? AND current_occupancy < total_capacity", slotID).
			UpdateColumn("current_occupancy", gorm.Expr("current_occupancy + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("failed to reserve capacity on slot %d: %w", slotID, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.AvailabilitySlot{}).Where("id = ?", slotID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check slot %d: %w", slotID, err)
			}
			if count == 0 {
				return &apperror.NotFoundError{Resource: "slot", ID: slotID}
			}
			return &apperror.SlotFullError{SlotID: slotID}
		}

		reservation = &model.Reservation{
			Token:     uuid.NewString(),
			SlotID:    slotID,
			BookingID: bookingID,
			CreatedAt: l.now().UTC(),
		}
		if err := tx.Create(reservation).Error; err != nil {
			return fmt.Errorf("failed to record reservation for booking %d: %w", bookingID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// Release returns the unit held by token. It reports whether capacity was
// actually returned; releasing the same token again is a no-op.
func (l *Ledger) Release(ctx context.Context, token string) (bool, error) {
	released := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r model.Reservation
		if err := tx.Where("token = ?", token).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperror.NotFoundError{Resource: "reservation", ID: token}
			}
			return fmt.Errorf("failed to load reservation %s: %w", token, err)
		}

		var err error
		released, err = releaseReservation(tx, r, l.now().UTC())
		return err
	})
	return released, err
}

// ReleaseForBooking releases the reservation held by bookingID.
func (l *Ledger) ReleaseForBooking(ctx context.Context, bookingID int64) (bool, error) {
	released := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r model.Reservation
		if err := tx.Where("booking_id = ?", bookingID).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperror.NotFoundError{Resource: "reservation for booking", ID: bookingID}
			}
			return fmt.Errorf("failed to load reservation for booking %d: %w", bookingID, err)
		}

		var err error
		released, err = releaseReservation(tx, r, l.now().UTC())
		return err
	})
	return released, err
}

// ForBooking returns the reservation held by bookingID.
func (l *Ledger) ForBooking(ctx context.Context, bookingID int64) (*model.Reservation, error) {
	var r model.Reservation
	if err := l.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperror.NotFoundError{Resource: "reservation for booking", ID: bookingID}
		}
		return nil, fmt.Errorf("failed to load reservation for booking %d: %w", bookingID, err)
	}
	return &r, nil
}

// releaseReservation marks r released and decrements its slot, floored at zero.
// The decrement only happens for the caller that flipped released_at.
func releaseReservation(tx *gorm.DB, r model.Reservation, now time.Time) (bool, error) {
	res := tx.Model(&model.Reservation{}).
		Where("token = ? AND released_at IS NULL", r.Token).
		UpdateColumn("released_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("failed to release reservation %s: %w", r.Token, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	res = tx.Model(&model.AvailabilitySlot{}).
		Where("id = ? AND current_occupancy > 0", r.SlotID).
		UpdateColumn("current_occupancy", gorm.Expr("current_occupancy - ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("failed to return capacity to slot %d: %w", r.SlotID, res.Error)
	}
	return true, nil
}
