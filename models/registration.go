package models

import (
	"time"
)

type TicketClass string

const (
	TicketClassVIP    TicketClass = "vip"    // free / invited
	TicketClassSingle TicketClass = "single" // single paid admission
	TicketClassPair   TicketClass = "pair"   // paired paid admission
)

func (c TicketClass) Valid() bool {
	switch c {
	case TicketClassVIP, TicketClassSingle, TicketClassPair:
		return true
	}
	return false
}

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
)

// Registration is one guest's registration for one event. TicketToken is
// written at most once by the issuance lock; an empty string means no ticket
// has been issued yet.
type Registration struct {
	ID             string             `json:"id"`
	GuestID        string             `json:"guest_id"`
	EventID        string             `json:"event_id"`
	TicketClass    TicketClass        `json:"ticket_class"`
	Status         RegistrationStatus `json:"status"`
	TicketToken    string             `json:"ticket_token,omitempty"`
	TicketIssuedAt *time.Time         `json:"ticket_issued_at,omitempty"`
}

type Guest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Event struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

// AdmissionDeadline is the moment a ticket for this event stops being valid,
// before any configured grace is added. Issuance time never participates: a
// ticket issued late must remain valid until the event is over.
func (e *Event) AdmissionDeadline() time.Time {
	if e.EndsAt != nil {
		return *e.EndsAt
	}
	return e.StartsAt.Add(24 * time.Hour)
}

type TableAssignment struct {
	ID             string `json:"id"`
	RegistrationID string `json:"registration_id"`
	TableName      string `json:"table_name"`
	TableType      string `json:"table_type"`
	SeatNumber     int    `json:"seat_number"`
}
