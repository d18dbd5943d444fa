package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/db/dbtest"
	"childcare-scheduling-backend/internal/notification"
	"childcare-scheduling-backend/internal/profile"
	"childcare-scheduling-backend/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recorder) Publish(ev notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []notification.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newService(t *testing.T) (*Service, *gorm.DB, *recorder) {
	gormDB := dbtest.New(t)
	rec := &recorder{}
	rates := profile.StaticRates{7: decimal.RequireFromString("30")}
	return NewService(gormDB, rates, rec, time.UTC), gormDB, rec
}

// 2026-10-19 is a Monday.
func mondaySlot(caregiverID int64) SlotInput {
	return SlotInput{
		CaregiverID:   caregiverID,
		Date:          "2026-10-19",
		StartTime:     "09:00",
		EndTime:       "17:00",
		TotalCapacity: 3,
		BaseRate:      rate("25"),
	}
}

func TestService_CreateSlot(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	res, err := svc.CreateSlot(ctx, mondaySlot(1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), res.Slot.StartAt)
	assert.Equal(t, time.Date(2026, 10, 19, 17, 0, 0, 0, time.UTC), res.Slot.EndAt)
	assert.Equal(t, 3, res.Slot.AvailableSpots())
	assert.Equal(t, []notification.EventType{notification.SlotCreated}, rec.types())
}

func TestService_CreateSlot_DuplicateThenReplace(t *testing.T) {
	svc, gormDB, rec := newService(t)
	ctx := context.Background()

	first, err := svc.CreateSlot(ctx, mondaySlot(1))
	require.NoError(t, err)

	second := mondaySlot(1)
	second.EndTime = "12:00"
	_, err = svc.CreateSlot(ctx, second)
	var dup *apperror.DuplicateSlotError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.Slot.ID, dup.ExistingSlotID)

	second.Policy = PolicyReplace
	res, err := svc.CreateSlot(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplaced, res.Outcome)
	assert.Equal(t, first.Slot.ID, res.ReplacedSlotID)

	_, err = store.NewSlotStore(gormDB).Get(ctx, first.Slot.ID)
	var nf *apperror.NotFoundError
	assert.True(t, errors.As(err, &nf), "original slot should be gone")

	slots, err := svc.ListSlots(ctx, 1, "2026-10-19", "2026-10-19")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), slots[0].EndAt)

	assert.Equal(t, []notification.EventType{notification.SlotCreated, notification.SlotReplaced}, rec.types())
}

func TestService_CreateSlot_SkipKeepsExisting(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	first, err := svc.CreateSlot(ctx, mondaySlot(1))
	require.NoError(t, err)

	again := mondaySlot(1)
	again.TotalCapacity = 5
	again.Policy = PolicySkip
	res, err := svc.CreateSlot(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, first.Slot.ID, res.Slot.ID)
	assert.Equal(t, 3, res.Slot.TotalCapacity)
	assert.Len(t, rec.types(), 1)
}

func TestService_CreateSlot_ReplaceOccupiedFails(t *testing.T) {
	svc, gormDB, _ := newService(t)
	ctx := context.Background()

	first, err := svc.CreateSlot(ctx, mondaySlot(1))
	require.NoError(t, err)
	_, err = store.NewLedger(gormDB).Reserve(ctx, first.Slot.ID, 100)
	require.NoError(t, err)

	replacement := mondaySlot(1)
	replacement.Policy = PolicyReplace
	_, err = svc.CreateSlot(ctx, replacement)
	var occupied *apperror.OccupiedSlotConflict
	require.True(t, errors.As(err, &occupied))
	assert.Equal(t, first.Slot.ID, occupied.SlotID)
	assert.Equal(t, 1, occupied.Occupancy)

	kept, err := store.NewSlotStore(gormDB).Get(ctx, first.Slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.CurrentOccupancy)
}

func TestService_CreateSlot_Validation(t *testing.T) {
	svc, _, _ := newService(t)

	testCases := []struct {
		name   string
		mutate func(in *SlotInput)
		field  string
	}{
		{name: "bad date", mutate: func(in *SlotInput) { in.Date = "19/10/2026" }, field: "date"},
		{name: "bad start", mutate: func(in *SlotInput) { in.StartTime = "9am" }, field: "startTime"},
		{name: "end before start", mutate: func(in *SlotInput) { in.EndTime = "08:00" }, field: "startTime"},
		{name: "zero capacity", mutate: func(in *SlotInput) { in.TotalCapacity = 0 }, field: "totalCapacity"},
		{name: "negative rate", mutate: func(in *SlotInput) { in.BaseRate = rate("-1") }, field: "baseRate"},
		{name: "no rate and no profile", mutate: func(in *SlotInput) { in.BaseRate = nil }, field: "baseRate"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := mondaySlot(1)
			tc.mutate(&in)

			_, err := svc.CreateSlot(context.Background(), in)
			var verr *apperror.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestService_CreateSlot_DefaultRateFromProfile(t *testing.T) {
	svc, _, _ := newService(t)

	in := mondaySlot(7)
	in.BaseRate = nil
	res, err := svc.CreateSlot(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(res.Slot.BaseRate))
}

func TestService_CreateSlot_MidnightEnd(t *testing.T) {
	svc, _, _ := newService(t)

	in := mondaySlot(1)
	in.StartTime = "20:00"
	in.EndTime = "24:00"
	res, err := svc.CreateSlot(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), res.Slot.EndAt)
}

func TestService_ListSlots(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for _, date := range []string{"2026-10-21", "2026-10-19", "2026-10-26"} {
		in := mondaySlot(1)
		in.Date = date
		_, err := svc.CreateSlot(ctx, in)
		require.NoError(t, err)
	}
	other := mondaySlot(2)
	_, err := svc.CreateSlot(ctx, other)
	require.NoError(t, err)

	slots, err := svc.ListSlots(ctx, 1, "2026-10-19", "2026-10-25")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 19, slots[0].StartAt.Day())
	assert.Equal(t, 21, slots[1].StartAt.Day())

	_, err = svc.ListSlots(ctx, 1, "2026-10-25", "2026-10-19")
	var verr *apperror.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestService_UpdateAndDeleteSlot(t *testing.T) {
	svc, gormDB, rec := newService(t)
	ctx := context.Background()

	res, err := svc.CreateSlot(ctx, mondaySlot(1))
	require.NoError(t, err)
	id := res.Slot.ID

	_, err = store.NewLedger(gormDB).Reserve(ctx, id, 100)
	require.NoError(t, err)
	_, err = store.NewLedger(gormDB).Reserve(ctx, id, 101)
	require.NoError(t, err)

	one := 1
	_, err = svc.UpdateSlot(ctx, id, store.SlotUpdate{TotalCapacity: &one})
	var inUse *apperror.CapacityInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, 2, inUse.Occupancy)

	five := 5
	updated, err := svc.UpdateSlot(ctx, id, store.SlotUpdate{TotalCapacity: &five, BaseRate: rate("27.50")})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.AvailableSpots())
	assert.True(t, decimal.RequireFromString("27.5").Equal(updated.BaseRate))

	err = svc.DeleteSlot(ctx, id)
	require.True(t, errors.As(err, &inUse))

	_, err = store.NewLedger(gormDB).ReleaseForBooking(ctx, 100)
	require.NoError(t, err)
	_, err = store.NewLedger(gormDB).ReleaseForBooking(ctx, 101)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSlot(ctx, id))

	var nf *apperror.NotFoundError
	assert.True(t, errors.As(svc.DeleteSlot(ctx, id), &nf))

	assert.Equal(t, []notification.EventType{
		notification.SlotCreated,
		notification.SlotUpdated,
		notification.SlotDeleted,
	}, rec.types())
}

func TestService_ApplyTemplate(t *testing.T) {
	svc, gormDB, rec := newService(t)
	ctx := context.Background()

	// An occupied Wednesday slot already sits where the template wants one.
	wed := mondaySlot(1)
	wed.Date = "2026-10-21"
	existing, err := svc.CreateSlot(ctx, wed)
	require.NoError(t, err)
	_, err = store.NewLedger(gormDB).Reserve(ctx, existing.Slot.ID, 100)
	require.NoError(t, err)

	results, err := svc.ApplyTemplate(ctx, TemplateInput{
		CaregiverID: 1,
		Template:    "traditional work week",
		WeekStart:   "2026-10-22",
		Capacity:    2,
		Rate:        rate("20"),
		Policy:      PolicyReplace,
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	created := 0
	for _, r := range results {
		if r.Err != nil {
			var occupied *apperror.OccupiedSlotConflict
			assert.True(t, errors.As(r.Err, &occupied))
			assert.Equal(t, time.Wednesday, r.Candidate.Date.Weekday())
			continue
		}
		assert.Equal(t, OutcomeCreated, r.Resolution.Outcome)
		assert.True(t, r.Resolution.Slot.IsRecurring)
		created++
	}
	assert.Equal(t, 4, created)

	slots, err := svc.ListSlots(ctx, 1, "2026-10-19", "2026-10-25")
	require.NoError(t, err)
	assert.Len(t, slots, 5)
	assert.Len(t, rec.types(), 5)
}

func TestService_ApplyTemplate_SkipAndDayFilter(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateSlot(ctx, mondaySlot(1))
	require.NoError(t, err)

	results, err := svc.ApplyTemplate(ctx, TemplateInput{
		CaregiverID: 1,
		Template:    "Traditional Work Week",
		WeekStart:   "2026-10-19",
		Capacity:    1,
		Rate:        rate("20"),
		Days:        []string{"monday", "tuesday"},
		Policy:      PolicySkip,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeSkipped, results[0].Resolution.Outcome)
	assert.Equal(t, 3, results[0].Resolution.Slot.TotalCapacity)
	assert.Equal(t, OutcomeCreated, results[1].Resolution.Outcome)
}

func TestService_ApplyTemplate_Errors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ApplyTemplate(ctx, TemplateInput{CaregiverID: 1, Template: "Night Owl", WeekStart: "2026-10-19", Capacity: 1, Rate: rate("10")})
	var nf *apperror.NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = svc.ApplyTemplate(ctx, TemplateInput{CaregiverID: 1, Template: "Early Bird", WeekStart: "2026-10-19", Capacity: 0, Rate: rate("10")})
	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "capacity", verr.Field)

	_, err = svc.ApplyTemplate(ctx, TemplateInput{CaregiverID: 1, Template: "Early Bird", WeekStart: "2026-10-19", Capacity: 1, Rate: rate("10"), Days: []string{"someday"}})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "days", verr.Field)
}

func TestParsePolicy(t *testing.T) {
	for raw, want := range map[string]ConflictPolicy{"": PolicyNone, "replace": PolicyReplace, " SKIP ": PolicySkip} {
		got, err := ParsePolicy(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("merge")
	assert.Error(t, err)
}
