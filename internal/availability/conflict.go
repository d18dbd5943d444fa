package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/model"
	"childcare-scheduling-backend/internal/store"
)

// ConflictPolicy is the caller's decision for a slot that already exists at
// the same (caregiver, start). The zero value means no decision was made.
type ConflictPolicy string

const (
	PolicyNone    ConflictPolicy = ""
	PolicyReplace ConflictPolicy = "REPLACE"
	PolicySkip    ConflictPolicy = "SKIP"
)

// ParsePolicy accepts "", "replace" or "skip" in any case.
func ParsePolicy(raw string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToUpper(strings.TrimSpace(raw))); p {
	case PolicyNone, PolicyReplace, PolicySkip:
		return p, nil
	default:
		return PolicyNone, apperror.Invalid("conflictPolicy", fmt.Sprintf("must be REPLACE or SKIP, got %q", raw))
	}
}

// Outcome says what happened to a candidate slot.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeReplaced Outcome = "replaced"
	OutcomeSkipped  Outcome = "skipped"
)

// Resolution is the result of placing one candidate. On skip, Slot is the
// existing slot that was kept.
type Resolution struct {
	Outcome        Outcome
	Slot           *model.AvailabilitySlot
	ReplacedSlotID int64
}

// Resolver places a candidate slot, detecting an existing slot with the same
// normalized start and applying the caller's policy.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a Resolver over db.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve validates candidate and creates, replaces or skips it. A replace of
// an occupied slot fails with OccupiedSlotConflict and changes nothing. When
// a concurrent insert wins the (caregiver, start) race, the caller's policy
// is applied to the winner.
func (r *Resolver) Resolve(ctx context.Context, candidate *model.AvailabilitySlot, policy ConflictPolicy) (*Resolution, error) {
	if err := store.ValidateSlot(candidate); err != nil {
		return nil, err
	}

	var res *Resolution
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slots := store.NewSlotStore(tx)

		existing, err := slots.FindByStart(ctx, candidate.CaregiverID, candidate.StartAt)
		if err != nil {
			return err
		}
		if existing == nil {
			err := slots.Create(ctx, candidate)
			if err == nil {
				res = &Resolution{Outcome: OutcomeCreated, Slot: candidate}
				return nil
			}
			var dup *apperror.DuplicateSlotError
			if !errors.As(err, &dup) || policy == PolicyNone {
				return err
			}
			candidate.ID = 0
			if existing, err = slots.Get(ctx, dup.ExistingSlotID); err != nil {
				return err
			}
		}

		res, err = applyPolicy(ctx, slots, candidate, existing, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func applyPolicy(ctx context.Context, slots *store.SlotStore, candidate, existing *model.AvailabilitySlot, policy ConflictPolicy) (*Resolution, error) {
	switch policy {
	case PolicySkip:
		return &Resolution{Outcome: OutcomeSkipped, Slot: existing}, nil
	case PolicyReplace:
		if err := slots.Delete(ctx, existing.ID); err != nil {
			var inUse *apperror.CapacityInUseError
			if errors.As(err, &inUse) {
				return nil, &apperror.OccupiedSlotConflict{SlotID: existing.ID, Occupancy: inUse.Occupancy}
			}
			return nil, err
		}
		if err := slots.Create(ctx, candidate); err != nil {
			return nil, err
		}
		return &Resolution{Outcome: OutcomeReplaced, Slot: candidate, ReplacedSlotID: existing.ID}, nil
	default:
		return nil, &apperror.DuplicateSlotError{ExistingSlotID: existing.ID}
	}
}
