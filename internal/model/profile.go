package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CaregiverProfile is the slice of the profile subsystem the scheduler reads.
type CaregiverProfile struct {
	CaregiverID int64           `gorm:"primaryKey"`
	DefaultRate decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	UpdatedAt   time.Time
}
