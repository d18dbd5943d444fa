// Package apperror defines the business errors returned by the scheduling and
// booking core. Every error carries the HTTP status and a stable code so the
// API layer can render it without knowing the concrete type.
package apperror

import (
	"fmt"
	"net/http"
)

// Coded is implemented by every error in this package.
type Coded interface {
	error
	HTTPStatus() int
	Code() string
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}
func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }
func (e *ValidationError) Code() string    { return "validation_error" }

// Invalid is shorthand for a ValidationError on field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateSlotError is returned when a slot already exists at the same
// (caregiver, start) and the caller did not pick a conflict policy.
type DuplicateSlotError struct {
	ExistingSlotID int64
}

func (e *DuplicateSlotError) Error() string {
	return fmt.Sprintf("a slot already starts at this time (slot %d); resubmit with REPLACE or SKIP", e.ExistingSlotID)
}
func (e *DuplicateSlotError) HTTPStatus() int { return http.StatusConflict }
func (e *DuplicateSlotError) Code() string    { return "duplicate_slot" }

// OccupiedSlotConflict is returned when REPLACE targets a slot with bookings.
type OccupiedSlotConflict struct {
	SlotID    int64
	Occupancy int
}

func (e *OccupiedSlotConflict) Error() string {
	return fmt.Sprintf("slot %d has %d active booking(s) and cannot be replaced", e.SlotID, e.Occupancy)
}
func (e *OccupiedSlotConflict) HTTPStatus() int { return http.StatusConflict }
func (e *OccupiedSlotConflict) Code() string    { return "occupied_slot_conflict" }

// CapacityInUseError is returned when deleting or shrinking an occupied slot.
type CapacityInUseError struct {
	SlotID    int64
	Occupancy int
}

func (e *CapacityInUseError) Error() string {
	return fmt.Sprintf("slot %d has %d spot(s) in use", e.SlotID, e.Occupancy)
}
func (e *CapacityInUseError) HTTPStatus() int { return http.StatusConflict }
func (e *CapacityInUseError) Code() string    { return "capacity_in_use" }

// SlotFullError is returned when no capacity is left to reserve.
type SlotFullError struct {
	SlotID int64
}

func (e *SlotFullError) Error() string {
	if e.SlotID == 0 {
		return "no available spots for the requested time"
	}
	return fmt.Sprintf("slot %d is full", e.SlotID)
}
func (e *SlotFullError) HTTPStatus() int { return http.StatusConflict }
func (e *SlotFullError) Code() string    { return "slot_full" }

// InvalidTransitionError is returned when a lifecycle event does not apply
// to the booking's current status.
type InvalidTransitionError struct {
	BookingID int64
	Current   string
	Event     string
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("booking %d: event %q is not allowed in status %s", e.BookingID, e.Event, e.Current)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}
func (e *InvalidTransitionError) HTTPStatus() int { return http.StatusConflict }
func (e *InvalidTransitionError) Code() string    { return "invalid_transition" }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}
func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }
func (e *NotFoundError) Code() string    { return "not_found" }
