package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cimillas/grabticket/internal/domain"
	"github.com/cimillas/grabticket/internal/testutil"
)

func TestCatalogRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCatalogRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("events round trip with metadata", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		sale := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		event := domain.Event{
			ID:          uuid.NewString(),
			Title:       "Concert",
			Organizer:   "Org",
			Location:    "Hall",
			SaleStartAt: sale,
			StartsAt:    sale.Add(24 * time.Hour),
			EndsAt:      sale.Add(26 * time.Hour),
			SeatMapURL:  "https://example.com/map.png",
		}
		if err := repo.CreateEvent(ctx, event); err != nil {
			t.Fatalf("create event: %v", err)
		}

		got, err := repo.GetEvent(ctx, event.ID)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if got.Title != event.Title || got.Organizer != event.Organizer || got.SeatMapURL != event.SeatMapURL {
			t.Fatalf("expected %+v, got %+v", event, got)
		}
		if !got.SaleStartAt.Equal(sale) || !got.EndsAt.Equal(event.EndsAt) {
			t.Fatalf("expected times %v..%v, got %v..%v", sale, event.EndsAt, got.SaleStartAt, got.EndsAt)
		}

		events, err := repo.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list events: %v", err)
		}
		if len(events) != 1 || events[0].ID != event.ID {
			t.Fatalf("unexpected events: %+v", events)
		}

		if _, err := repo.GetEvent(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("ticket type requires an existing event", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := repo.CreateTicketType(ctx, domain.TicketType{
			ID:           uuid.NewString(),
			EventID:      missingUUID,
			SeatType:     "VIP",
			Price:        10,
			InitialQty:   1,
			AvailableQty: 1,
		})
		if err != domain.ErrEventNotFound {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("usernames are unique", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.CreateUser(ctx, domain.User{ID: uuid.NewString(), Username: "alice", Balance: 5}); err != nil {
			t.Fatalf("create user: %v", err)
		}
		err := repo.CreateUser(ctx, domain.User{ID: uuid.NewString(), Username: "alice"})
		if err != domain.ErrUsernameTaken {
			t.Fatalf("expected ErrUsernameTaken, got %v", err)
		}
	})
}
