package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/ratelimit"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// ClassificationDispatcher enqueues asynchronous classification jobs.
type ClassificationDispatcher interface {
	Enqueue(ctx context.Context, ticketID string, force bool) error
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	classify   ClassificationDispatcher
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	Dispatcher     events.Dispatcher
	ClassifyQueue  ClassificationDispatcher
	ClassifyLimits *ratelimit.Limiter
	Logger         *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Notes       *string
	Status      domain.TicketStatus
}

// TicketUpdateInput describes a partial update; nil fields are left alone.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Notes       *string
	Status      *domain.TicketStatus
	Category    *string
}

// TicketListFilter describes listing parameters at the service boundary.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Category   *string
	SearchTerm *string
	Sort       []repository.SortField
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		classify:   deps.ClassifyQueue,
		limiter:    deps.ClassifyLimits,
		logger:     deps.Logger,
	}
}

// CreateTicket creates a ticket and queues its first classification.
func (s *TicketService) CreateTicket(ctx context.Context, user *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	status := input.Status
	if status == "" {
		status = domain.TicketStatusActive
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}

	ticket := &domain.Ticket{
		UserID:      user.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Notes:       input.Notes,
		Status:      status,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if s.classify != nil {
		if err := s.classify.Enqueue(ctx, ticket.ID, false); err != nil {
			// Ticket creation succeeded; classification can be re-run later.
			s.logger.Warn("failed to enqueue classification",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  user.ID,
		Payload: events.TicketCreatedPayload{
			UserID: ticket.UserID,
			Title:  ticket.Title,
			Status: ticket.Status,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the caller; non-managers only see
// their own.
func (s *TicketService) ListTickets(ctx context.Context, user *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Category:   filter.Category,
		SearchTerm: filter.SearchTerm,
		Sort:       filter.Sort,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !user.IsManager() {
		repoFilter.UserID = &user.ID
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicket fetches a ticket ensuring the caller may see it.
func (s *TicketService) GetTicket(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(user, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// UpdateTicket applies a partial update, including human category edits.
func (s *TicketService) UpdateTicket(ctx context.Context, user *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(user, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	oldStatus := ticket.Status
	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Notes != nil {
		ticket.Notes = input.Notes
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		ticket.Status = *input.Status
	}
	if input.Category != nil {
		if *input.Category != "" && !domain.KnownCategory(*input.Category) {
			return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
		}
		ticket.Category = input.Category
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	if input.Status != nil && oldStatus != ticket.Status {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  user.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, nil
}

// DeleteTicket removes a ticket the caller may manage.
func (s *TicketService) DeleteTicket(ctx context.Context, user *domain.User, ticketID string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if !s.canAccess(user, ticket) {
		return apperrors.NewForbidden("access denied")
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		ActorID:  user.ID,
		Payload:  events.TicketDeletedPayload{Title: ticket.Title},
	})
	return nil
}

// Stats aggregates per-status and per-category ticket counts.
func (s *TicketService) Stats(ctx context.Context) (*repository.TicketStats, error) {
	return s.tickets.Stats(ctx)
}

// ClassifyNow queues a forced reclassification, subject to the per-user
// request limit. Returns immediately once the job is queued.
func (s *TicketService) ClassifyNow(ctx context.Context, user *domain.User, ticketID string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if !s.canAccess(user, ticket) {
		return apperrors.NewForbidden("access denied")
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, user.ID)
		if err != nil {
			return err
		}
		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			return apperrors.NewRateLimited(seconds)
		}
	}

	return s.classify.Enqueue(ctx, ticket.ID, true)
}

// ExportCSV writes the filtered ticket listing as CSV.
func (s *TicketService) ExportCSV(ctx context.Context, user *domain.User, filter TicketListFilter, w io.Writer) error {
	filter.Limit = exportLimit
	filter.Offset = 0
	tickets, err := s.ListTickets(ctx, user, filter)
	if err != nil {
		return err
	}

	authorNames := map[string]string{}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"ID", "Title", "Description", "Status", "Category", "Confidence", "Notes", "Author", "Created At", "Updated At"}); err != nil {
		return err
	}
	for i := range tickets {
		t := &tickets[i]
		name, ok := authorNames[t.UserID]
		if !ok {
			if author, err := s.users.GetByID(ctx, t.UserID); err == nil {
				name = author.Name
			}
			authorNames[t.UserID] = name
		}
		record := []string{
			t.ID,
			t.Title,
			t.Description,
			t.Status.Label(),
			derefOrEmpty(t.Category),
			confidencePercent(t.Confidence),
			derefOrEmpty(t.Notes),
			name,
			t.CreatedAt.Format("2006-01-02 15:04:05"),
			t.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportFileName builds the timestamped attachment name for CSV downloads.
func ExportFileName(now time.Time) string {
	return "tickets_" + now.Format("2006-01-02_15-04-05") + ".csv"
}

const exportLimit = 10000

func (s *TicketService) canAccess(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil {
		return false
	}
	return user.IsManager() || ticket.UserID == user.ID
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	fillEventDefaults(&event)
	_ = s.dispatcher.Publish(ctx, event)
}

func fillEventDefaults(event *events.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func confidencePercent(confidence *float64) string {
	if confidence == nil {
		return ""
	}
	return fmt.Sprintf("%.2f%%", *confidence*100)
}
