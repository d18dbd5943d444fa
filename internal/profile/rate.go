// Package profile reads the caregiver profile fields the scheduler depends on.
// The profile subsystem owns the data; this package only reads it.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/model"
)

// RateProvider returns a caregiver's default hourly rate.
type RateProvider interface {
	DefaultRate(ctx context.Context, caregiverID int64) (decimal.Decimal, error)
}

// GormRateProvider reads default rates from caregiver_profiles.
type GormRateProvider struct {
	db *gorm.DB
}

// NewGormRateProvider creates a RateProvider backed by db.
func NewGormRateProvider(db *gorm.DB) *GormRateProvider {
	return &GormRateProvider{db: db}
}

// DefaultRate implements RateProvider.
func (p *GormRateProvider) DefaultRate(ctx context.Context, caregiverID int64) (decimal.Decimal, error) {
	var prof model.CaregiverProfile
	if err := p.db.WithContext(ctx).First(&prof, "caregiver_id = ?", caregiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, &apperror.NotFoundError{Resource: "caregiver profile", ID: caregiverID}
		}
		return decimal.Zero, fmt.Errorf("failed to load profile for caregiver %d: %w", caregiverID, err)
	}
	return prof.DefaultRate, nil
}

// StaticRates is a fixed RateProvider, used where no profile table exists.
type StaticRates map[int64]decimal.Decimal

// DefaultRate implements RateProvider.
func (s StaticRates) DefaultRate(_ context.Context, caregiverID int64) (decimal.Decimal, error) {
	rate, ok := s[caregiverID]
	if !ok {
		return decimal.Zero, &apperror.NotFoundError{Resource: "caregiver profile", ID: caregiverID}
	}
	return rate, nil
}
