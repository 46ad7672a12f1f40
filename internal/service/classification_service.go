package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// TicketClassifier produces a classification for ticket text. It is total;
// failures inside the classifier resolve to its fallback result.
type TicketClassifier interface {
	Classify(ctx context.Context, subject, body string) domain.ClassificationResult
}

// ClassificationService runs one classification attempt per invocation. It is
// executed off the request path by the queue worker; errors it returns are
// retried by that layer.
type ClassificationService struct {
	tickets    repository.TicketRepository
	classifier TicketClassifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClassificationService constructs the service.
func NewClassificationService(
	tickets repository.TicketRepository,
	ticketClassifier TicketClassifier,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ClassificationService {
	return &ClassificationService{
		tickets:    tickets,
		classifier: ticketClassifier,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// ClassifyTicket classifies one ticket and merges the result. With force
// unset, a ticket that already carries a category is skipped entirely. The
// merge never clobbers an existing category unless force is set, while
// explanation and confidence are always refreshed once the guard is passed.
func (s *ClassificationService) ClassifyTicket(ctx context.Context, ticketID string, force bool) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Error("failed to load ticket for classification",
			zap.String("ticket_id", ticketID),
			zap.Error(err),
			zap.Stack("stack"))
		return err
	}

	if !force && ticket.HasCategory() {
		s.logger.Info("skipping classification for ticket with existing category",
			zap.String("ticket_id", ticket.ID),
			zap.String("existing_category", *ticket.Category))
		s.metrics.RecordClassification(observability.OutcomeSkipped)
		return nil
	}

	result := s.classifier.Classify(ctx, ticket.Title, ticket.Description)

	// Category is overwritten only when it was empty to begin with or the
	// caller forced reclassification; explanation and confidence are always
	// written. The emptiness re-check is intentionally independent of the
	// skip guard above.
	var category *string
	if !ticket.HasCategory() || force {
		category = &result.Category
	}

	if err := s.tickets.UpdateClassification(ctx, ticket.ID, category, result.Explanation, result.Confidence); err != nil {
		s.logger.Error("failed to persist classification",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
			zap.Stack("stack"))
		return err
	}

	s.logger.Info("ticket classified successfully",
		zap.String("ticket_id", ticket.ID),
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence))
	s.metrics.RecordClassification(observability.OutcomeClassified)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: ticket.ID,
		Payload: events.TicketClassifiedPayload{
			Category:        result.Category,
			Confidence:      result.Confidence,
			CategoryUpdated: category != nil,
		},
	})
	return nil
}

func (s *ClassificationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	fillEventDefaults(&event)
	_ = s.dispatcher.Publish(ctx, event)
}
