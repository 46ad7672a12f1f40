package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CategoryNone filters for tickets that have never been classified.
const CategoryNone = "none"

// TicketFilter captures listing parameters.
type TicketFilter struct {
	UserID     *string
	Statuses   []domain.TicketStatus
	Category   *string
	SearchTerm *string
	Sort       []SortField
	Limit      int
	Offset     int
}

// SortField is a validated sort column with direction.
type SortField struct {
	Column string
	Desc   bool
}

var sortableColumns = map[string]string{
	"title":      "title",
	"status":     "status",
	"category":   "category",
	"confidence": "confidence",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

// ParseSort converts a comma-separated sort expression ("title,-createdAt")
// into sort fields, rejecting columns outside the whitelist.
func ParseSort(expr string) ([]SortField, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	fields := []SortField{}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		column, ok := sortableColumns[name]
		if !ok {
			return nil, fmt.Errorf("unsupported sort field %q", name)
		}
		fields = append(fields, SortField{Column: column, Desc: desc})
	}
	return fields, nil
}

// TicketStats aggregates counts for the stats endpoint.
type TicketStats struct {
	PerStatus   map[domain.TicketStatus]int64
	PerCategory map[string]int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	UpdateClassification(ctx context.Context, id string, category *string, explanation string, confidence float64) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListForClassification(ctx context.Context, status *domain.TicketStatus, includeClassified bool, limit int) ([]domain.Ticket, error)
	Stats(ctx context.Context) (*TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, title, description, notes, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Title,
		ticket.Description,
		ticket.Notes,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, notes=$3, status=$4, category=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Notes,
		ticket.Status,
		ticket.Category,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateClassification merges one classification run into the ticket.
// Explanation and confidence are always written; category only when the
// caller passes a non-nil value.
func (r *ticketRepository) UpdateClassification(ctx context.Context, id string, category *string, explanation string, confidence float64) error {
	if category != nil {
		const query = `
            UPDATE tickets SET category=$1, explanation=$2, confidence=$3, updated_at=NOW()
            WHERE id=$4`
		cmd, err := r.pool.Exec(ctx, query, *category, explanation, confidence, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	}

	const query = `
        UPDATE tickets SET explanation=$1, confidence=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, explanation, confidence, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const ticketColumns = `id, user_id, title, description, notes, status, category, explanation, confidence, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Notes,
		&ticket.Status,
		&ticket.Category,
		&ticket.Explanation,
		&ticket.Confidence,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		if *filter.Category == CategoryNone {
			clauses = append(clauses, "category IS NULL")
		} else {
			args = append(args, *filter.Category)
			clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
		}
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), orderBy(filter.Sort), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListForClassification enumerates tickets for bulk dispatch. Unless
// includeClassified is set, only never-classified tickets are returned.
func (r *ticketRepository) ListForClassification(ctx context.Context, status *domain.TicketStatus, includeClassified bool, limit int) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if status != nil {
		args = append(args, *status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if !includeClassified {
		clauses = append(clauses, "category IS NULL")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context) (*TicketStats, error) {
	stats := &TicketStats{
		PerStatus: map[domain.TicketStatus]int64{
			domain.TicketStatusActive:    0,
			domain.TicketStatusCompleted: 0,
			domain.TicketStatusOnHold:    0,
			domain.TicketStatusCancelled: 0,
		},
		PerCategory: map[string]int64{},
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.PerStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT category, COUNT(*) FROM tickets WHERE category IS NOT NULL GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats.PerCategory[category] = count
	}
	return stats, rows.Err()
}

func orderBy(fields []SortField) string {
	if len(fields) == 0 {
		return "updated_at DESC"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, f.Column+" "+dir)
	}
	return strings.Join(parts, ", ")
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.UserID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Notes,
			&ticket.Status,
			&ticket.Category,
			&ticket.Explanation,
			&ticket.Confidence,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
