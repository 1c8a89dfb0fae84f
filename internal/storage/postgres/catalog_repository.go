package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/grabticket/internal/domain"
)

type CatalogRepository struct {
	db
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db{pool: pool}}
}

func (r *CatalogRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (id, title, organizer, location, description, sale_start_at, starts_at, ends_at, seat_map_url, cover_image)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		event.ID,
		event.Title,
		event.Organizer,
		event.Location,
		event.Description,
		event.SaleStartAt,
		event.StartsAt,
		event.EndsAt,
		event.SeatMapURL,
		event.CoverImage,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY sale_start_at ASC, created_at ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.SaleStartAt = event.SaleStartAt.UTC()
		event.StartsAt = event.StartsAt.UTC()
		event.EndsAt = event.EndsAt.UTC()
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

func (r *CatalogRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	return r.getEvent(ctx, eventID)
}

func (r *CatalogRepository) ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	return r.listTicketTypes(ctx, eventID)
}

func (r *CatalogRepository) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	const stmt = `
INSERT INTO ticket_types (id, event_id, seat_type, price, initial_qty, available_qty)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, tt.ID, tt.EventID, tt.SeatType, tt.Price, tt.InitialQty, tt.AvailableQty)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrEventNotFound
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidQuantity
		}
		return fmt.Errorf("create ticket type: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateUser(ctx context.Context, user domain.User) error {
	const stmt = `INSERT INTO users (id, username, balance) VALUES ($1, $2, $3)`

	_, err := r.exec(ctx, stmt, user.ID, user.Username, user.Balance)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidBalance
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
