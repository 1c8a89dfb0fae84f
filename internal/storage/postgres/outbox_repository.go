package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/grabticket/internal/domain"
)

// OutboxRepository stores order events next to the orders they describe.
type OutboxRepository struct {
	db
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db{pool: pool}}
}

// AppendOutbox joins the transaction in ctx when there is one.
func (r *OutboxRepository) AppendOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	const stmt = `
INSERT INTO grab_outbox (id, topic, aggregate_id, payload, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	status := msg.Status
	if status == "" {
		status = domain.OutboxStatusPending
	}
	_, err := r.exec(ctx, stmt, msg.ID, msg.Topic, msg.AggregateID, msg.Payload, string(status), msg.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

// FetchUnsent returns up to limit messages that were not delivered yet,
// oldest first. Failed messages are retried on later cycles.
func (r *OutboxRepository) FetchUnsent(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	const query = `
SELECT id, topic, aggregate_id, payload, status, attempts, last_error, created_at
FROM grab_outbox
WHERE status <> 'sent'
ORDER BY created_at ASC
LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxMessage
	for rows.Next() {
		var (
			msg    domain.OutboxMessage
			status string
		)
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.AggregateID, &msg.Payload, &status, &msg.Attempts, &msg.LastError, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		msg.Status = domain.OutboxStatus(status)
		out = append(out, msg)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate outbox: %w", rows.Err())
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	const stmt = `
UPDATE grab_outbox
SET status = 'sent', attempts = attempts + 1, last_error = '', sent_at = NOW()
WHERE id = $1`

	if _, err := r.exec(ctx, stmt, id); err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id, reason string, attempts int) error {
	const stmt = `
UPDATE grab_outbox
SET status = 'failed', attempts = attempts + $2, last_error = $3
WHERE id = $1`

	if _, err := r.exec(ctx, stmt, id, attempts, reason); err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}
