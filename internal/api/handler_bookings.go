package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/booking"
	"childcare-scheduling-backend/internal/model"
	"childcare-scheduling-backend/internal/store"
)

type createBookingRequest struct {
	ParentID      int64     `json:"parentId" binding:"required"`
	CaregiverID   int64     `json:"caregiverId" binding:"required"`
	StartTime     time.Time `json:"startTime" binding:"required"`
	EndTime       time.Time `json:"endTime" binding:"required"`
	ChildrenCount int       `json:"childrenCount"`
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.bookings.Request(c.Request.Context(), booking.RequestInput{
		ParentID:      req.ParentID,
		CaregiverID:   req.CaregiverID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		ChildrenCount: req.ChildrenCount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /api/bookings/:booking_id.
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := idParam(c, "booking_id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListBookings handles GET /api/bookings?parentId=|caregiverId=&status=.
func (h *Handler) ListBookings(c *gin.Context) {
	parentID, ok := optionalID(c, "parentId")
	if !ok {
		return
	}
	caregiverID, ok := optionalID(c, "caregiverId")
	if !ok {
		return
	}
	status := model.BookingStatus(strings.ToUpper(c.Query("status")))
	switch status {
	case "", model.StatusPending, model.StatusConfirmed, model.StatusInProgress, model.StatusCompleted, model.StatusCancelled:
	default:
		respondError(c, apperror.Invalid("status", "is not a booking status"))
		return
	}

	bookings, err := h.bookings.List(c.Request.Context(), store.BookingFilter{
		ParentID:    parentID,
		CaregiverID: caregiverID,
		Status:      status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

type transitionRequest struct {
	Event string `json:"event" binding:"required"`
}

// TransitionBooking handles POST /api/bookings/:booking_id/transitions.
func (h *Handler) TransitionBooking(c *gin.Context) {
	id, ok := idParam(c, "booking_id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ev, err := booking.ParseEvent(req.Event)
	if err != nil {
		respondError(c, apperror.Invalid("event", err.Error()))
		return
	}

	b, err := h.bookings.Transition(c.Request.Context(), id, ev)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetBookingHistory handles GET /api/bookings/:booking_id/transitions.
func (h *Handler) GetBookingHistory(c *gin.Context) {
	id, ok := idParam(c, "booking_id")
	if !ok {
		return
	}
	history, err := h.bookings.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
