package model

import "time"

// Reservation is the ledger token for one unit of capacity held by a booking.
// ReleasedAt is set exactly once.
type Reservation struct {
	Token      string     `gorm:"primaryKey;size:36"`
	SlotID     int64      `gorm:"not null;index"`
	BookingID  int64      `gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time  `gorm:"not null"`
	ReleasedAt *time.Time
}

// Active reports whether the reservation still holds capacity.
func (r Reservation) Active() bool {
	return r.ReleasedAt == nil
}
