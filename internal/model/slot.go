package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AvailabilitySlot is a published window of caregiver availability with a
// finite number of spots. CurrentOccupancy is only ever changed by the
// capacity ledger.
type AvailabilitySlot struct {
	ID               int64           `gorm:"primaryKey" json:"id"`
	CaregiverID      int64           `gorm:"not null;uniqueIndex:idx_slot_caregiver_start,priority:1" json:"caregiverId"`
	Date             time.Time       `gorm:"not null;index" json:"-"`
	StartAt          time.Time       `gorm:"not null;uniqueIndex:idx_slot_caregiver_start,priority:2;check:chk_slot_window,start_at < end_at" json:"startAt"`
	EndAt            time.Time       `gorm:"not null" json:"endAt"`
	TotalCapacity    int             `gorm:"not null;check:chk_slot_capacity,total_capacity >= 1" json:"totalCapacity"`
	CurrentOccupancy int             `gorm:"not null;default:0;check:chk_slot_occupancy,current_occupancy >= 0 AND current_occupancy <= total_capacity" json:"currentOccupancy"`
	BaseRate         decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"baseRate"`
	IsRecurring      bool            `gorm:"not null;default:false" json:"isRecurring"`
	Notes            string          `gorm:"size:1024" json:"notes"`
	CreatedAt        time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updatedAt"`
}

// AvailableSpots is the remaining capacity of the slot.
func (s AvailabilitySlot) AvailableSpots() int {
	return s.TotalCapacity - s.CurrentOccupancy
}

// Covers reports whether [start, end) lies within the slot's window.
func (s AvailabilitySlot) Covers(start, end time.Time) bool {
	return !start.Before(s.StartAt) && !end.After(s.EndAt)
}
