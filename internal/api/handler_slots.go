package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"childcare-scheduling-backend/internal/availability"
	"childcare-scheduling-backend/internal/model"
	"childcare-scheduling-backend/internal/parse"
	"childcare-scheduling-backend/internal/schedule"
	"childcare-scheduling-backend/internal/store"
)

// SlotResponse is a slot as seen by clients, with wall-clock fields in the
// scheduling timezone.
type SlotResponse struct {
	ID               int64           `json:"id"`
	CaregiverID      int64           `json:"caregiverId"`
	Date             string          `json:"date"`
	StartTime        string          `json:"startTime"`
	EndTime          string          `json:"endTime"`
	StartAt          time.Time       `json:"startAt"`
	EndAt            time.Time       `json:"endAt"`
	TotalCapacity    int             `json:"totalCapacity"`
	CurrentOccupancy int             `json:"currentOccupancy"`
	AvailableSpots   int             `json:"availableSpots"`
	BaseRate         decimal.Decimal `json:"baseRate"`
	IsRecurring      bool            `json:"isRecurring"`
	Notes            string          `json:"notes"`
}

func newSlotResponse(s *model.AvailabilitySlot, loc *time.Location) SlotResponse {
	end := parse.ClockOf(s.EndAt, loc).String()
	if parse.FormatDate(s.EndAt, loc) != parse.FormatDate(s.StartAt, loc) && end == "00:00" {
		end = "24:00"
	}
	return SlotResponse{
		ID:               s.ID,
		CaregiverID:      s.CaregiverID,
		Date:             parse.FormatDate(s.StartAt, loc),
		StartTime:        parse.ClockOf(s.StartAt, loc).String(),
		EndTime:          end,
		StartAt:          s.StartAt,
		EndAt:            s.EndAt,
		TotalCapacity:    s.TotalCapacity,
		CurrentOccupancy: s.CurrentOccupancy,
		AvailableSpots:   s.AvailableSpots(),
		BaseRate:         s.BaseRate,
		IsRecurring:      s.IsRecurring,
		Notes:            s.Notes,
	}
}

type createSlotRequest struct {
	Date           string           `json:"date" binding:"required"`
	StartTime      string           `json:"startTime" binding:"required"`
	EndTime        string           `json:"endTime" binding:"required"`
	TotalCapacity  int              `json:"totalCapacity"`
	BaseRate       *decimal.Decimal `json:"baseRate"`
	IsRecurring    bool             `json:"isRecurring"`
	Notes          string           `json:"notes"`
	ConflictPolicy string           `json:"conflictPolicy"`
}

type resolutionResponse struct {
	Outcome        availability.Outcome `json:"outcome"`
	Slot           SlotResponse         `json:"slot"`
	ReplacedSlotID int64                `json:"replacedSlotId,omitempty"`
}

// CreateSlot handles POST /api/caregivers/:caregiver_id/slots.
func (h *Handler) CreateSlot(c *gin.Context) {
	caregiverID, ok := idParam(c, "caregiver_id")
	if !ok {
		return
	}
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	policy, err := availability.ParsePolicy(req.ConflictPolicy)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.slots.CreateSlot(c.Request.Context(), availability.SlotInput{
		CaregiverID:   caregiverID,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		TotalCapacity: req.TotalCapacity,
		BaseRate:      req.BaseRate,
		IsRecurring:   req.IsRecurring,
		Notes:         req.Notes,
		Policy:        policy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Outcome == availability.OutcomeSkipped {
		status = http.StatusOK
	}
	c.JSON(status, h.resolution(res))
}

func (h *Handler) resolution(res *availability.Resolution) resolutionResponse {
	return resolutionResponse{
		Outcome:        res.Outcome,
		Slot:           newSlotResponse(res.Slot, h.slots.Location()),
		ReplacedSlotID: res.ReplacedSlotID,
	}
}

// ListSlots handles GET /api/caregivers/:caregiver_id/slots?start=&end=.
func (h *Handler) ListSlots(c *gin.Context) {
	caregiverID, ok := idParam(c, "caregiver_id")
	if !ok {
		return
	}
	start := c.Query("start")
	end := c.DefaultQuery("end", start)

	slots, err := h.slots.ListSlots(c.Request.Context(), caregiverID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	loc := h.slots.Location()
	responses := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		responses = append(responses, newSlotResponse(&slots[i], loc))
	}
	c.JSON(http.StatusOK, responses)
}

type updateSlotRequest struct {
	TotalCapacity *int             `json:"totalCapacity"`
	BaseRate      *decimal.Decimal `json:"baseRate"`
	Notes         *string          `json:"notes"`
}

// UpdateSlot handles PATCH /api/slots/:slot_id.
func (h *Handler) UpdateSlot(c *gin.Context) {
	slotID, ok := idParam(c, "slot_id")
	if !ok {
		return
	}
	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	slot, err := h.slots.UpdateSlot(c.Request.Context(), slotID, store.SlotUpdate{
		TotalCapacity: req.TotalCapacity,
		BaseRate:      req.BaseRate,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSlotResponse(slot, h.slots.Location()))
}

// DeleteSlot handles DELETE /api/slots/:slot_id.
func (h *Handler) DeleteSlot(c *gin.Context) {
	slotID, ok := idParam(c, "slot_id")
	if !ok {
		return
	}
	if err := h.slots.DeleteSlot(c.Request.Context(), slotID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type templateResponse struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Entries     []entryResponse `json:"entries"`
}

type entryResponse struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// GetTemplates handles GET /api/templates.
func GetTemplates() gin.HandlerFunc {
	catalog := schedule.Catalog()
	responses := make([]templateResponse, 0, len(catalog))
	for _, t := range catalog {
		entries := make([]entryResponse, 0, len(t.Entries))
		for _, e := range t.Entries {
			entries = append(entries, entryResponse{
				Day:       e.Day.String(),
				StartTime: e.Start.String(),
				EndTime:   e.End.String(),
			})
		}
		responses = append(responses, templateResponse{Name: t.Name, Description: t.Description, Entries: entries})
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, responses)
	}
}

type applyTemplateRequest struct {
	Template       string           `json:"template" binding:"required"`
	WeekStart      string           `json:"weekStart" binding:"required"`
	Capacity       int              `json:"capacity"`
	Rate           *decimal.Decimal `json:"rate"`
	Days           []string         `json:"days"`
	ConflictPolicy string           `json:"conflictPolicy"`
}

type templateOutcome struct {
	Date      string              `json:"date"`
	StartTime string              `json:"startTime"`
	EndTime   string              `json:"endTime"`
	Outcome   string              `json:"outcome"`
	Result    *resolutionResponse `json:"result,omitempty"`
	Error     gin.H               `json:"error,omitempty"`
}

// ApplyTemplate handles POST /api/caregivers/:caregiver_id/templates/apply.
// Individual candidate failures are reported per entry with a 200.
func (h *Handler) ApplyTemplate(c *gin.Context) {
	caregiverID, ok := idParam(c, "caregiver_id")
	if !ok {
		return
	}
	var req applyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	policy, err := availability.ParsePolicy(req.ConflictPolicy)
	if err != nil {
		respondError(c, err)
		return
	}

	results, err := h.slots.ApplyTemplate(c.Request.Context(), availability.TemplateInput{
		CaregiverID: caregiverID,
		Template:    req.Template,
		WeekStart:   req.WeekStart,
		Capacity:    req.Capacity,
		Rate:        req.Rate,
		Days:        req.Days,
		Policy:      policy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	loc := h.slots.Location()
	outcomes := make([]templateOutcome, 0, len(results))
	for _, r := range results {
		o := templateOutcome{
			Date:      parse.FormatDate(r.Candidate.StartAt, loc),
			StartTime: parse.ClockOf(r.Candidate.StartAt, loc).String(),
			EndTime:   parse.ClockOf(r.Candidate.EndAt, loc).String(),
		}
		if r.Err != nil {
			o.Outcome = "failed"
			o.Error = errorBody(r.Err)
		} else {
			res := h.resolution(r.Resolution)
			o.Outcome = string(r.Resolution.Outcome)
			o.Result = &res
		}
		outcomes = append(outcomes, o)
	}
	c.JSON(http.StatusOK, gin.H{"template": req.Template, "results": outcomes})
}
