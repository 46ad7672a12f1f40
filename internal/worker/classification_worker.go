// Package worker runs queued classification jobs on a bounded pool.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/queue"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

const dequeueWait = 5 * time.Second

// Runner executes one classification attempt for one ticket.
type Runner interface {
	ClassifyTicket(ctx context.Context, ticketID string, force bool) error
}

// JobQueue is the queue surface the worker needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Requeue(ctx context.Context, job queue.Job) error
}

// ClassificationWorker drains the classification queue. Each job gets a
// bounded attempt; failures are requeued up to the attempt limit and then
// dead-lettered for operator review.
type ClassificationWorker struct {
	queue       JobQueue
	runner      Runner
	deadLetters repository.DeadLetterRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	limiter     *rate.Limiter

	maxAttempts    int
	attemptTimeout time.Duration
	concurrency    int
}

// NewClassificationWorker builds a worker from queue configuration.
func NewClassificationWorker(
	cfg config.QueueConfig,
	jobQueue JobQueue,
	runner Runner,
	deadLetters repository.DeadLetterRepository,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ClassificationWorker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	rps := cfg.DispatchRPS
	if rps <= 0 {
		rps = 10
	}
	return &ClassificationWorker{
		queue:          jobQueue,
		runner:         runner,
		deadLetters:    deadLetters,
		logger:         logger,
		metrics:        metrics,
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
		maxAttempts:    maxAttempts,
		attemptTimeout: cfg.AttemptTimeout(),
		concurrency:    concurrency,
	}
}

// Run drains the queue until the context is canceled.
func (w *ClassificationWorker) Run(ctx context.Context) {
	w.logger.Info("classification worker starting",
		zap.Int("concurrency", w.concurrency),
		zap.Int("max_attempts", w.maxAttempts),
		zap.Duration("attempt_timeout", w.attemptTimeout))

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	w.logger.Info("classification worker stopped")
}

func (w *ClassificationWorker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to dequeue classification job", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, *job)
	}
}

func (w *ClassificationWorker) process(ctx context.Context, job queue.Job) {
	attemptCtx, cancel := context.WithTimeout(ctx, w.attemptTimeout)
	err := w.runner.ClassifyTicket(attemptCtx, job.TicketID, job.Force)
	cancel()
	if err == nil {
		return
	}

	if job.Attempt < w.maxAttempts {
		w.logger.Warn("classification attempt failed, requeueing",
			zap.String("ticket_id", job.TicketID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		if requeueErr := w.queue.Requeue(ctx, job); requeueErr != nil {
			w.logger.Error("failed to requeue classification job",
				zap.String("ticket_id", job.TicketID),
				zap.Error(requeueErr))
		}
		return
	}

	w.logger.Error("classification job dead-lettered",
		zap.String("ticket_id", job.TicketID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err))
	w.metrics.RecordClassification(observability.OutcomeDeadLettered)

	entry := &domain.DeadLetter{
		TicketID:     job.TicketID,
		ErrorMessage: err.Error(),
		Attempts:     job.Attempt,
	}
	if dlErr := w.deadLetters.Create(ctx, entry); dlErr != nil {
		w.logger.Error("failed to record dead letter",
			zap.String("ticket_id", job.TicketID),
			zap.Error(dlErr))
	}
}
