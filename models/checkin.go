package models

import (
	"time"
)

// CheckIn is the sole source of truth for "already admitted". At most one row
// exists per registration (unique index); replacing it requires an explicit
// staff override.
type CheckIn struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registration_id"`
	StaffID        string    `json:"staff_id,omitempty"`
	Override       bool      `json:"override"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

// AdmissionEvent is the payload pushed to live-status subscribers after a
// successful check-in. Best effort, never persisted or replayed.
type AdmissionEvent struct {
	GuestID    string    `json:"guest_id"`
	GuestName  string    `json:"guest_name"`
	TableName  string    `json:"table_name,omitempty"`
	TableType  string    `json:"table_type,omitempty"`
	SeatNumber int       `json:"seat_number,omitempty"`
	AdmittedAt time.Time `json:"admitted_at"`
}
