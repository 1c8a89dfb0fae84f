package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cimillas/grabticket/internal/domain"
)

const eventColumns = `id, title, organizer, location, description, sale_start_at, starts_at, ends_at, seat_map_url, cover_image`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Organizer,
		&e.Location,
		&e.Description,
		&e.SaleStartAt,
		&e.StartsAt,
		&e.EndsAt,
		&e.SeatMapURL,
		&e.CoverImage,
	)
	return e, err
}

func (d db) getEvent(ctx context.Context, eventID string) (domain.Event, error) {
	e, err := scanEvent(d.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Event{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	e.SaleStartAt = e.SaleStartAt.UTC()
	e.StartsAt = e.StartsAt.UTC()
	e.EndsAt = e.EndsAt.UTC()
	return e, nil
}

func (d db) listTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	const query = `
SELECT id, event_id, seat_type, price, initial_qty, available_qty
FROM ticket_types
WHERE event_id = $1
ORDER BY created_at ASC, id ASC`

	rows, err := d.query(ctx, query, eventID)
	if err != nil {
		if isInvalidUUID(err) {
			return []domain.TicketType{}, nil
		}
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	defer rows.Close()

	types := []domain.TicketType{}
	for rows.Next() {
		var tt domain.TicketType
		if err := rows.Scan(&tt.ID, &tt.EventID, &tt.SeatType, &tt.Price, &tt.InitialQty, &tt.AvailableQty); err != nil {
			return nil, fmt.Errorf("scan ticket type: %w", err)
		}
		types = append(types, tt)
	}
	if rows.Err() != nil {
		if isInvalidUUID(rows.Err()) {
			return []domain.TicketType{}, nil
		}
		return nil, fmt.Errorf("iterate ticket types: %w", rows.Err())
	}
	return types, nil
}
