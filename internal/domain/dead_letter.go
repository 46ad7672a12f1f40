package domain

import "time"

// DeadLetter records a classification job that exhausted its retry budget.
// Rows are operator-facing; nothing re-dispatches them automatically.
type DeadLetter struct {
	ID            string
	TicketID      string
	ErrorMessage  string
	Attempts      int
	FirstFailedAt time.Time
	LastFailedAt  time.Time
}
