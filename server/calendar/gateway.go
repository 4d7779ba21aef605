// Package calendar exposes appointment management against an external
// scheduling backend: availability queries plus create, reschedule, cancel,
// and lookup of appointments.
package calendar

import (
	"context"
	"errors"
)

var (
	// ErrConflict indicates the requested slot is already taken.
	ErrConflict = errors.New("calendar: scheduling conflict")
	// ErrNotFound indicates the referenced appointment does not exist.
	ErrNotFound = errors.New("calendar: appointment not found")
	// ErrUnavailable indicates the scheduling backend is unreachable.
	ErrUnavailable = errors.New("calendar: backend unavailable")
)

// Slot is an open time window on a given date.
type Slot struct {
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM, 24h
	EndTime   string `json:"end_time"`   // HH:MM, 24h
}

// CreateRequest holds the details for a new appointment.
type CreateRequest struct {
	Service         string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM, 24h
	DurationMinutes int
	CustomerName    string
	CustomerPhone   string
	Stylist         string
	Notes           string
}

// Confirmation is the result of a successful mutation.
type Confirmation struct {
	EventID         string `json:"event_id"`
	Summary         string `json:"summary"`
	Date            string `json:"date,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Status          string `json:"status"` // confirmed | rescheduled | cancelled
}

// Appointment is an existing calendar event matched by a lookup.
type Appointment struct {
	EventID     string `json:"event_id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// Gateway is the scheduling backend boundary. Exactly one backend mutation
// occurs per accepted create/update/cancel call; implementations must not
// retry mutations on their own.
type Gateway interface {
	// CheckAvailability returns open slots on the given date within business
	// hours, optionally filtered by stylist.
	CheckAvailability(ctx context.Context, date string, durationMinutes int, stylist string) ([]Slot, error)

	// CreateAppointment books a new appointment.
	// Returns ErrConflict if the slot is already taken.
	CreateAppointment(ctx context.Context, req CreateRequest) (*Confirmation, error)

	// UpdateAppointment moves an existing appointment to a new date/time.
	// Returns ErrNotFound if the event does not exist.
	UpdateAppointment(ctx context.Context, eventID, newDate, newStartTime string, newDurationMinutes int) (*Confirmation, error)

	// CancelAppointment deletes an appointment.
	// Returns ErrNotFound if the event does not exist.
	CancelAppointment(ctx context.Context, eventID string) (*Confirmation, error)

	// FindAppointments searches upcoming appointments by customer name or
	// phone number.
	FindAppointments(ctx context.Context, customerName, customerPhone string) ([]Appointment, error)
}
