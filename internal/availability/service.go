// Package availability manages caregiver slots: manual creation, template
// expansion, listing and caregiver edits. Every new slot passes through the
// conflict resolver.
package availability

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
	"childcare-scheduling-backend/internal/parse"
	"childcare-scheduling-backend/internal/profile"
	"childcare-scheduling-backend/internal/schedule"
	"childcare-scheduling-backend/internal/store"
)

// Service implements the slot operations of the scheduling core.
type Service struct {
	db       *gorm.DB
	resolver *Resolver
	rates    profile.RateProvider
	events   notification.Publisher
	loc      *time.Location
}

// NewService wires a slot service. loc is the timezone slot dates and clock
// times are written in.
func NewService(db *gorm.DB, rates profile.RateProvider, events notification.Publisher, loc *time.Location) *Service {
	if events == nil {
		events = notification.Discard
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:       db,
		resolver: NewResolver(db),
		rates:    rates,
		events:   events,
		loc:      loc,
	}
}

// Location returns the scheduling timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// SlotInput is a manual slot request. BaseRate nil means "use the caregiver's default".
type SlotInput struct {
	CaregiverID   int64
	Date          string
	StartTime     string
	EndTime       string
	TotalCapacity int
	BaseRate      *decimal.Decimal
	IsRecurring   bool
	Notes         string
	Policy        ConflictPolicy
}

// CreateSlot builds a slot from in and places it through the conflict resolver.
func (s *Service) CreateSlot(ctx context.Context, in SlotInput) (*Resolution, error) {
	date, err := parse.ParseDate(in.Date, s.loc)
	if err != nil {
		return nil, apperror.Invalid("date", err.Error())
	}
	start, err := parse.ParseClock(in.StartTime)
	if err != nil {
		return nil, apperror.Invalid("startTime", err.Error())
	}
	end, err := parse.ParseClock(in.EndTime)
	if err != nil {
		return nil, apperror.Invalid("endTime", err.Error())
	}
	rate, err := s.rateFor(ctx, in.CaregiverID, in.BaseRate)
	if err != nil {
		return nil, err
	}

	slot := &model.AvailabilitySlot{
		CaregiverID:   in.CaregiverID,
		Date:          date,
		StartAt:       start.On(date, s.loc),
		EndAt:         end.On(date, s.loc),
		TotalCapacity: in.TotalCapacity,
		BaseRate:      rate,
		IsRecurring:   in.IsRecurring,
		Notes:         in.Notes,
	}

	res, err := s.resolver.Resolve(ctx, slot, in.Policy)
	if err != nil {
		return nil, err
	}
	s.emitResolution(res)
	return res, nil
}

// ListSlots returns the caregiver's slots from startDate through endDate inclusive.
func (s *Service) ListSlots(ctx context.Context, caregiverID int64, startDate, endDate string) ([]model.AvailabilitySlot, error) {
	from, err := parse.ParseDate(startDate, s.loc)
	if err != nil {
		return nil, apperror.Invalid("startDate", err.Error())
	}
	last, err := parse.ParseDate(endDate, s.loc)
	if err != nil {
		return nil, apperror.Invalid("endDate", err.Error())
	}
	if last.Before(from) {
		return nil, apperror.Invalid("endDate", "must not be before startDate")
	}
	to := last.AddDate(0, 0, 1)

	return store.NewSlotStore(s.db).List(ctx, caregiverID, from, to)
}

// GetSlot loads one slot.
func (s *Service) GetSlot(ctx context.Context, slotID int64) (*model.AvailabilitySlot, error) {
	return store.NewSlotStore(s.db).Get(ctx, slotID)
}

// DeleteSlot removes an unoccupied slot.
func (s *Service) DeleteSlot(ctx context.Context, slotID int64) error {
	slots := store.NewSlotStore(s.db)
	slot, err := slots.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if err := slots.Delete(ctx, slotID); err != nil {
		return err
	}
	s.emit(notification.SlotDeleted, slot)
	return nil
}

// UpdateSlot applies caregiver edits to rate, capacity or notes.
func (s *Service) UpdateSlot(ctx context.Context, slotID int64, upd store.SlotUpdate) (*model.AvailabilitySlot, error) {
	slot, err := store.NewSlotStore(s.db).Update(ctx, slotID, upd)
	if err != nil {
		return nil, err
	}
	s.emit(notification.SlotUpdated, slot)
	return slot, nil
}

// TemplateInput asks for one week of a named template.
type TemplateInput struct {
	CaregiverID int64
	Template    string
	WeekStart   string
	Capacity    int
	Rate        *decimal.Decimal
	Days        []string
	Policy      ConflictPolicy
}

// TemplateResult is the outcome for one expanded candidate. Exactly one of
// Resolution and Err is set.
type TemplateResult struct {
	Candidate  schedule.Candidate
	Resolution *Resolution
	Err        error
}

// ApplyTemplate expands a template for one week and resolves each candidate
// independently with the caller's policy.
func (s *Service) ApplyTemplate(ctx context.Context, in TemplateInput) ([]TemplateResult, error) {
	tmpl, ok := schedule.Lookup(in.Template)
	if !ok {
		return nil, &apperror.NotFoundError{Resource: "template", ID: in.Template}
	}
	weekStart, err := parse.ParseDate(in.WeekStart, s.loc)
	if err != nil {
		return nil, apperror.Invalid("weekStart", err.Error())
	}
	days, err := schedule.ParseDayFilter(in.Days)
	if err != nil {
		return nil, apperror.Invalid("days", err.Error())
	}
	if in.Capacity < 1 {
		return nil, apperror.Invalid("capacity", "must be at least 1")
	}
	rate, err := s.rateFor(ctx, in.CaregiverID, in.Rate)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, apperror.Invalid("rate", "must be greater than 0")
	}

	candidates := schedule.Expand(tmpl, weekStart, s.loc, in.Capacity, rate, days)
	results := make([]TemplateResult, 0, len(candidates))
	for _, c := range candidates {
		slot := &model.AvailabilitySlot{
			CaregiverID:   in.CaregiverID,
			Date:          c.Date,
			StartAt:       c.StartAt,
			EndAt:         c.EndAt,
			TotalCapacity: c.Capacity,
			BaseRate:      c.Rate,
			IsRecurring:   true,
			Notes:         tmpl.Name,
		}
		res, err := s.resolver.Resolve(ctx, slot, in.Policy)
		if err != nil {
			results = append(results, TemplateResult{Candidate: c, Err: err})
			continue
		}
		s.emitResolution(res)
		results = append(results, TemplateResult{Candidate: c, Resolution: res})
	}
	return results, nil
}

func (s *Service) rateFor(ctx context.Context, caregiverID int64, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if s.rates == nil {
		return decimal.Zero, apperror.Invalid("baseRate", "is required")
	}
	rate, err := s.rates.DefaultRate(ctx, caregiverID)
	if err != nil {
		var nf *apperror.NotFoundError
		if errors.As(err, &nf) {
			return decimal.Zero, apperror.Invalid("baseRate", "is required when the caregiver has no default rate")
		}
		return decimal.Zero, fmt.Errorf("failed to load default rate: %w", err)
	}
	return rate, nil
}

func (s *Service) emitResolution(res *Resolution) {
	switch res.Outcome {
	case OutcomeCreated:
		s.emit(notification.SlotCreated, res.Slot)
	case OutcomeReplaced:
		s.emit(notification.SlotReplaced, res.Slot)
	}
}

func (s *Service) emit(t notification.EventType, slot *model.AvailabilitySlot) {
	s.events.Publish(notification.Event{
		Type:        t,
		RecipientID: slot.CaregiverID,
		Payload: map[string]any{
			"slotId":         slot.ID,
			"startAt":        slot.StartAt,
			"endAt":          slot.EndAt,
			"availableSpots": slot.AvailableSpots(),
		},
		OccurredAt: time.Now().UTC(),
	})
}
