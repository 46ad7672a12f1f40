package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload for new tickets.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Notes       *string `json:"notes,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// UpdateTicketRequest supports partial updates; absent fields stay untouched.
type UpdateTicketRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Status      *string `json:"status,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// TicketResponse is the JSON shape of a ticket.
type TicketResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Notes       *string             `json:"notes,omitempty"`
	Status      domain.TicketStatus `json:"status"`
	Category    *string             `json:"category"`
	Explanation *string             `json:"explanation"`
	Confidence  *float64            `json:"confidence"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ClassificationQueuedResponse acknowledges a classify-now request.
type ClassificationQueuedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TicketStatsResponse aggregates ticket counts.
type TicketStatsResponse struct {
	PerStatus   map[domain.TicketStatus]int64 `json:"per_status"`
	PerCategory map[string]int64              `json:"per_category"`
}
