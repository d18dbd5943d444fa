package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/model"
)

// SlotStore persists availability slots. It never touches CurrentOccupancy
// except through the guards on delete and capacity edits.
type SlotStore struct {
	db *gorm.DB
}

// NewSlotStore creates a GORM-backed slot store. db may be a transaction.
func NewSlotStore(db *gorm.DB) *SlotStore {
	return &SlotStore{db: db}
}

// SlotUpdate lists the caregiver-editable fields of a slot. Nil means unchanged.
type SlotUpdate struct {
	TotalCapacity *int
	BaseRate      *decimal.Decimal
	Notes         *string
}

// ValidateSlot checks the window, capacity and rate of a new slot.
func ValidateSlot(slot *model.AvailabilitySlot) error {
	if slot.CaregiverID <= 0 {
		return apperror.Invalid("caregiverId", "is required")
	}
	if !slot.StartAt.Before(slot.EndAt) {
		return apperror.Invalid("startTime", "must be before endTime")
	}
	if slot.TotalCapacity < 1 {
		return apperror.Invalid("totalCapacity", "must be at least 1")
	}
	if !slot.BaseRate.IsPositive() {
		return apperror.Invalid("baseRate", "must be greater than 0")
	}
	return nil
}

// Create validates and inserts slot. Duplicate detection is the caller's job;
// losing an insert race on (caregiver, start) is still reported as a duplicate.
func (s *SlotStore) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	slot.Date = slot.Date.UTC()
	slot.StartAt = slot.StartAt.UTC().Truncate(time.Second)
	slot.EndAt = slot.EndAt.UTC().Truncate(time.Second)
	slot.CurrentOccupancy = 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(slot).Error
	})
	if err == nil {
		return nil
	}

	existing, findErr := s.FindByStart(ctx, slot.CaregiverID, slot.StartAt)
	if findErr == nil && existing != nil {
		return &apperror.DuplicateSlotError{ExistingSlotID: existing.ID}
	}
	return fmt.Errorf("failed to create slot for caregiver %d: %w", slot.CaregiverID, err)
}

// Get loads one slot.
func (s *SlotStore) Get(ctx context.Context, id int64) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	if err := s.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperror.NotFoundError{Resource: "slot", ID: id}
		}
		return nil, fmt.Errorf("failed to load slot %d: %w", id, err)
	}
	return &slot, nil
}

// FindByStart returns the caregiver's slot starting exactly at startAt, or nil.
func (s *SlotStore) FindByStart(ctx context.Context, caregiverID int64, startAt time.Time) (*model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	if err := s.db.WithContext(ctx).
		Where("caregiver_id = ? AND start_at = ?", caregiverID, startAt.UTC().Truncate(time.Second)).
		Limit(1).
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to look up slot at %s: %w", startAt, err)
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return &slots[0], nil
}

// List returns the caregiver's slots overlapping [from, to), ordered by date and start.
func (s *SlotStore) List(ctx context.Context, caregiverID int64, from, to time.Time) ([]model.AvailabilitySlot, error) {
	slots := make([]model.AvailabilitySlot, 0)
	if err := s.db.WithContext(ctx).
		Where("caregiver_id = ? AND start_at < ? AND end_at > ?", caregiverID, to.UTC(), from.UTC()).
		Order("date ASC, start_at ASC").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to list slots for caregiver %d: %w", caregiverID, err)
	}
	return slots, nil
}

// Covering returns the caregiver's slots that fully contain [start, end), earliest first.
func (s *SlotStore) Covering(ctx context.Context, caregiverID int64, start, end time.Time) ([]model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	if err := s.db.WithContext(ctx).
		Where("caregiver_id = ? AND start_at <= ? AND end_at >= ?", caregiverID, start.UTC(), end.UTC()).
		Order("start_at ASC").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to find covering slots for caregiver %d: %w", caregiverID, err)
	}
	return slots, nil
}

// Delete removes an unoccupied slot. The occupancy check and the delete are
// one statement.
func (s *SlotStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND current_occupancy = 0", id).
		Delete(&model.AvailabilitySlot{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete slot %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return &apperror.CapacityInUseError{SlotID: id, Occupancy: current.CurrentOccupancy}
}

// Update applies caregiver edits. A capacity change is guarded in the same
// statement so it can never drop below the occupancy at write time.
func (s *SlotStore) Update(ctx context.Context, id int64, upd SlotUpdate) (*model.AvailabilitySlot, error) {
	updates := map[string]any{}
	q := s.db.WithContext(ctx).Model(&model.AvailabilitySlot{}).Where("id = ?", id)

	if upd.TotalCapacity != nil {
		if *upd.TotalCapacity < 1 {
			return nil, apperror.Invalid("totalCapacity", "must be at least 1")
		}
		updates["total_capacity"] = *upd.TotalCapacity
		q = q.Where("current_occupancy <= ?", *upd.TotalCapacity)
	}
	if upd.BaseRate != nil {
		if !upd.BaseRate.IsPositive() {
			return nil, apperror.Invalid("baseRate", "must be greater than 0")
		}
		updates["base_rate"] = *upd.BaseRate
	}
	if upd.Notes != nil {
		updates["notes"] = *upd.Notes
	}
	if len(updates) == 0 {
		return nil, apperror.Invalid("", "no fields to update")
	}
	updates["updated_at"] = time.Now().UTC()

	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update slot %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &apperror.CapacityInUseError{SlotID: id, Occupancy: current.CurrentOccupancy}
	}
	return s.Get(ctx, id)
}
