package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "A"
	TicketStatusCompleted TicketStatus = "C"
	TicketStatusOnHold    TicketStatus = "H"
	TicketStatusCancelled TicketStatus = "X"
)

// Valid reports whether the status is one of the known codes.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusActive, TicketStatusCompleted, TicketStatusOnHold, TicketStatusCancelled:
		return true
	}
	return false
}

// Label returns the human-readable name used in exports.
func (s TicketStatus) Label() string {
	switch s {
	case TicketStatusActive:
		return "Active"
	case TicketStatusCompleted:
		return "Completed"
	case TicketStatusOnHold:
		return "On Hold"
	case TicketStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Ticket is the aggregate for support requests. Category, Explanation and
// Confidence are nil until a classification run (or a human edit) sets them.
type Ticket struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Notes       *string
	Status      TicketStatus
	Category    *string
	Explanation *string
	Confidence  *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCategory reports whether the ticket already carries a category.
func (t *Ticket) HasCategory() bool {
	return t.Category != nil && *t.Category != ""
}
