package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/apperror"
	"childcare-scheduling-backend/internal/availability"
	"childcare-scheduling-backend/internal/booking"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	db       *gorm.DB
	slots    *availability.Service
	bookings *booking.Service
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(db *gorm.DB, slots *availability.Service, bookings *booking.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		db:       db,
		slots:    slots,
		bookings: bookings,
		webpush:  webpushOptions,
	}
}

// respondError renders business errors with their own status and code.
// Anything else is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	var coded apperror.Coded
	if !errors.As(err, &coded) {
		log.Printf("request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(errorStatus(err), errorBody(err))
}

func errorStatus(err error) int {
	var coded apperror.Coded
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// errorBody is the JSON shape of err: a stable code, a message and any
// identifiers the client needs to resolve it.
func errorBody(err error) gin.H {
	var coded apperror.Coded
	if !errors.As(err, &coded) {
		return gin.H{"error": "internal_error", "message": "internal server error"}
	}

	body := gin.H{"error": coded.Code(), "message": coded.Error()}
	var (
		verr     *apperror.ValidationError
		dup      *apperror.DuplicateSlotError
		occupied *apperror.OccupiedSlotConflict
		inUse    *apperror.CapacityInUseError
		full     *apperror.SlotFullError
		invalid  *apperror.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		if verr.Field != "" {
			body["field"] = verr.Field
		}
	case errors.As(err, &dup):
		body["existingSlotId"] = dup.ExistingSlotID
	case errors.As(err, &occupied):
		body["slotId"] = occupied.SlotID
		body["occupancy"] = occupied.Occupancy
	case errors.As(err, &inUse):
		body["slotId"] = inUse.SlotID
		body["occupancy"] = inUse.Occupancy
	case errors.As(err, &full):
		if full.SlotID != 0 {
			body["slotId"] = full.SlotID
		}
	case errors.As(err, &invalid):
		body["currentStatus"] = invalid.Current
		body["event"] = invalid.Event
	}
	return body
}

// badRequest renders a binding failure as a validation error.
func badRequest(c *gin.Context, err error) {
	respondError(c, apperror.Invalid("", err.Error()))
}

// idParam parses a positive int64 path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperror.Invalid(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// optionalID parses a positive int64 query parameter; absent means 0.
func optionalID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperror.Invalid(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}
