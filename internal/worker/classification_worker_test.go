package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/queue"
)

// memoryBroker serves queued payloads in order and cancels the run context
// once the queue drains, so Run returns.
type memoryBroker struct {
	mu       sync.Mutex
	payloads [][]byte
	cancel   context.CancelFunc
}

func (b *memoryBroker) Push(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *memoryBroker) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.payloads) == 0 {
		b.cancel()
		return nil, nil
	}
	payload := b.payloads[0]
	b.payloads = b.payloads[1:]
	return payload, nil
}

type scriptedRunner struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *scriptedRunner) ClassifyTicket(ctx context.Context, ticketID string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("provider timeout")
	}
	return nil
}

type recordingDeadLetters struct {
	mu      sync.Mutex
	entries []domain.DeadLetter
}

func (d *recordingDeadLetters) Create(ctx context.Context, entry *domain.DeadLetter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, *entry)
	return nil
}

func (d *recordingDeadLetters) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.DeadLetter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DeadLetter(nil), d.entries...), nil
}

func runWorker(t *testing.T, broker *memoryBroker, runner *scriptedRunner) (*recordingDeadLetters, *observability.Metrics) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	broker.cancel = cancel

	deadLetters := &recordingDeadLetters{}
	metrics := observability.NewMetrics()
	cfg := config.QueueConfig{MaxAttempts: 3, AttemptTimeoutSeconds: 5, Concurrency: 1, DispatchRPS: 1000}
	w := NewClassificationWorker(cfg, queue.New(broker), runner, deadLetters, zap.NewNop(), metrics)
	w.Run(ctx)
	return deadLetters, metrics
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	broker := &memoryBroker{}
	jobQueue := queue.New(broker)
	if err := jobQueue.Enqueue(context.Background(), "t1", false); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runner := &scriptedRunner{failures: 2}

	deadLetters, metrics := runWorker(t, broker, runner)

	if runner.calls != 3 {
		t.Errorf("runner calls = %d, want 3", runner.calls)
	}
	if len(deadLetters.entries) != 0 {
		t.Errorf("job dead-lettered despite eventual success: %+v", deadLetters.entries)
	}
	if got := metrics.ClassificationCount(observability.OutcomeDeadLettered); got != 0 {
		t.Errorf("dead-letter count = %d, want 0", got)
	}
}

func TestWorkerDeadLettersAfterMaxAttempts(t *testing.T) {
	broker := &memoryBroker{}
	jobQueue := queue.New(broker)
	if err := jobQueue.Enqueue(context.Background(), "t1", true); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runner := &scriptedRunner{failures: 100}

	deadLetters, metrics := runWorker(t, broker, runner)

	if runner.calls != 3 {
		t.Errorf("runner calls = %d, want 3", runner.calls)
	}
	if len(deadLetters.entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(deadLetters.entries))
	}
	entry := deadLetters.entries[0]
	if entry.TicketID != "t1" || entry.Attempts != 3 {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.ErrorMessage == "" {
		t.Error("dead letter missing error message")
	}
	if got := metrics.ClassificationCount(observability.OutcomeDeadLettered); got != 1 {
		t.Errorf("dead-letter count = %d, want 1", got)
	}
}
