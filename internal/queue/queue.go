// Package queue implements the classification job queue. Jobs are serialized
// to a Redis list; delivery is at-least-once and the attempt counter travels
// inside the payload.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job is one classification task for one ticket.
type Job struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Force      bool      `json:"force"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Broker moves serialized job payloads. Pop returns (nil, nil) when no
// payload arrived within the timeout.
type Broker interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// RedisBroker backs the queue with a Redis list.
type RedisBroker struct {
	client *redis.Client
	key    string
}

// NewRedisBroker wraps a Redis client and list key.
func NewRedisBroker(client *redis.Client, key string) *RedisBroker {
	return &RedisBroker{client: client, key: key}
}

// Push appends a payload to the list.
func (b *RedisBroker) Push(ctx context.Context, payload []byte) error {
	return b.client.LPush(ctx, b.key, payload).Err()
}

// Pop blocks for up to timeout waiting for a payload.
func (b *RedisBroker) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	vals, err := b.client.BRPop(ctx, timeout, b.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(vals) != 2 {
		return nil, nil
	}
	return []byte(vals[1]), nil
}

// Queue dispatches and receives classification jobs.
type Queue struct {
	broker Broker
}

// New builds a queue over the given broker.
func New(broker Broker) *Queue {
	return &Queue{broker: broker}
}

// Enqueue dispatches a first-attempt classification job for a ticket.
func (q *Queue) Enqueue(ctx context.Context, ticketID string, force bool) error {
	return q.push(ctx, Job{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		Force:      force,
		Attempt:    1,
		EnqueuedAt: time.Now(),
	})
}

// Requeue puts a failed job back with its attempt counter advanced.
func (q *Queue) Requeue(ctx context.Context, job Job) error {
	job.Attempt++
	return q.push(ctx, job)
}

// Dequeue waits up to timeout for the next job.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	payload, err := q.broker.Pop(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *Queue) push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.broker.Push(ctx, payload)
}
