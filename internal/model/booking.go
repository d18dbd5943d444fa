package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusCancelled  BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transitions leave this status.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Booking is a parent's claim on one unit of a slot's capacity.
type Booking struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	CaregiverID   int64           `gorm:"not null;index" json:"caregiverId"`
	ParentID      int64           `gorm:"not null;index" json:"parentId"`
	SlotID        int64           `gorm:"not null;index" json:"slotId"`
	StartAt       time.Time       `gorm:"not null" json:"startTime"`
	EndAt         time.Time       `gorm:"not null" json:"endTime"`
	ChildrenCount int             `gorm:"not null" json:"childrenCount"`
	HourlyRate    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"hourlyRate"`
	TotalHours    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"totalHours"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	Status        BookingStatus   `gorm:"size:16;not null;index" json:"status"`
	RequestedAt   time.Time       `gorm:"not null" json:"requestedAt"`
	ConfirmedAt   *time.Time      `json:"confirmedAt,omitempty"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updatedAt"`
}

// BookingTransition is the append-only history of status changes.
type BookingTransition struct {
	ID         int64         `gorm:"primaryKey" json:"id"`
	BookingID  int64         `gorm:"not null;index" json:"bookingId"`
	FromStatus BookingStatus `gorm:"size:16" json:"from"`
	ToStatus   BookingStatus `gorm:"size:16;not null" json:"to"`
	Event      string        `gorm:"size:16;not null" json:"event"`
	OccurredAt time.Time     `gorm:"not null" json:"occurredAt"`
}
