package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DeadLetterRepository stores classification jobs that exhausted retries.
type DeadLetterRepository interface {
	Create(ctx context.Context, entry *domain.DeadLetter) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.DeadLetter, error)
}

type deadLetterRepository struct {
	pool *pgxpool.Pool
}

// NewDeadLetterRepository returns a Postgres-backed implementation.
func NewDeadLetterRepository(pool *pgxpool.Pool) DeadLetterRepository {
	return &deadLetterRepository{pool: pool}
}

func (r *deadLetterRepository) Create(ctx context.Context, entry *domain.DeadLetter) error {
	const query = `
        INSERT INTO classification_dead_letters (ticket_id, error_message, attempts)
        VALUES ($1, $2, $3)
        RETURNING id, first_failed_at, last_failed_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.ErrorMessage,
		entry.Attempts,
	).Scan(&entry.ID, &entry.FirstFailedAt, &entry.LastFailedAt)
}

func (r *deadLetterRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.DeadLetter, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, ticket_id, error_message, attempts, first_failed_at, last_failed_at
        FROM classification_dead_letters
        WHERE ticket_id=$1
        ORDER BY last_failed_at DESC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.DeadLetter
	for rows.Next() {
		var e domain.DeadLetter
		if err := rows.Scan(&e.ID, &e.TicketID, &e.ErrorMessage, &e.Attempts, &e.FirstFailedAt, &e.LastFailedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
