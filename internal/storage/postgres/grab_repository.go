package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/grabticket/internal/domain"
)

type GrabRepository struct {
	db
}

func NewGrabRepository(pool *pgxpool.Pool) *GrabRepository {
	return &GrabRepository{db: db{pool: pool}}
}

func (r *GrabRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *GrabRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	return r.getEvent(ctx, eventID)
}

func (r *GrabRepository) ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	return r.listTicketTypes(ctx, eventID)
}

func (r *GrabRepository) GetTicketTypeForUpdate(ctx context.Context, eventID, ticketTypeID string) (domain.TicketType, error) {
	const query = `
SELECT id, event_id, seat_type, price, initial_qty, available_qty
FROM ticket_types
WHERE id = $1 AND event_id = $2
FOR UPDATE`

	var tt domain.TicketType
	err := r.queryRow(ctx, query, ticketTypeID, eventID).
		Scan(&tt.ID, &tt.EventID, &tt.SeatType, &tt.Price, &tt.InitialQty, &tt.AvailableQty)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.TicketType{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketType{}, domain.ErrTicketTypeNotFound
		}
		return domain.TicketType{}, fmt.Errorf("get ticket type: %w", err)
	}
	return tt, nil
}

func (r *GrabRepository) GetUserForUpdate(ctx context.Context, userID string) (domain.User, error) {
	const query = `SELECT id, username, balance FROM users WHERE id = $1 FOR UPDATE`

	var u domain.User
	err := r.queryRow(ctx, query, userID).Scan(&u.ID, &u.Username, &u.Balance)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.User{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// DecrementTicketType takes one unit of stock. The guard keeps stock from
// going negative even without the row lock.
func (r *GrabRepository) DecrementTicketType(ctx context.Context, ticketTypeID string) error {
	const stmt = `
UPDATE ticket_types
SET available_qty = available_qty - 1
WHERE id = $1 AND available_qty > 0`

	tag, err := r.exec(ctx, stmt, ticketTypeID)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrSoldOut
		}
		return fmt.Errorf("decrement ticket type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSoldOut
	}
	return nil
}

func (r *GrabRepository) DebitUser(ctx context.Context, userID string, amount int64) error {
	const stmt = `
UPDATE users
SET balance = balance - $2
WHERE id = $1 AND balance >= $2`

	tag, err := r.exec(ctx, stmt, userID, amount)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInsufficientBalance
		}
		return fmt.Errorf("debit user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *GrabRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, user_id, event_id, ticket_type_id, price, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		order.ID,
		order.UserID,
		order.EventID,
		order.TicketTypeID,
		order.Price,
		order.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// Ping reports whether the database answers.
func (r *GrabRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
