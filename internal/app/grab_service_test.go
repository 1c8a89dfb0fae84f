package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cimillas/grabticket/internal/clock"
	"github.com/cimillas/grabticket/internal/domain"
)

var grabNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// seedGrabRepo returns a store with one open event holding a VIP type
// (1 left, price 10) and a GA type (5 left, price 3).
func seedGrabRepo(balance int64) *fakeGrabRepo {
	repo := newFakeGrabRepo()
	repo.addEvent(domain.Event{ID: "event-1", Title: "Concert", SaleStartAt: grabNow.Add(-time.Hour)})
	repo.addTicketType(domain.TicketType{ID: "vip", EventID: "event-1", SeatType: "VIP", Price: 10, AvailableQty: 1})
	repo.addTicketType(domain.TicketType{ID: "ga", EventID: "event-1", SeatType: "GA", Price: 3, AvailableQty: 5})
	repo.addUser(domain.User{ID: "user-1", Username: "alice", Balance: balance})
	return repo
}

func TestGrabService_Grab(t *testing.T) {
	t.Parallel()

	t.Run("succeeds and settles atomically", func(t *testing.T) {
		repo := seedGrabRepo(10)
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		order, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.ID == "" {
			t.Fatalf("expected order ID to be set")
		}
		if order.Price != 10 {
			t.Fatalf("expected price 10, got %d", order.Price)
		}
		if !order.CreatedAt.Equal(grabNow) {
			t.Fatalf("expected created_at %v, got %v", grabNow, order.CreatedAt)
		}
		if got := repo.types["vip"].AvailableQty; got != 0 {
			t.Fatalf("expected available_qty 0, got %d", got)
		}
		if got := repo.users["user-1"].Balance; got != 0 {
			t.Fatalf("expected balance 0, got %d", got)
		}
		if len(repo.orders) != 1 {
			t.Fatalf("expected 1 order, got %d", len(repo.orders))
		}
	})

	t.Run("insufficient balance leaves stock untouched", func(t *testing.T) {
		repo := seedGrabRepo(5)
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		_, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
		if got := repo.types["vip"].AvailableQty; got != 1 {
			t.Fatalf("expected available_qty 1, got %d", got)
		}
		if got := repo.users["user-1"].Balance; got != 5 {
			t.Fatalf("expected balance 5, got %d", got)
		}
		if len(repo.orders) != 0 {
			t.Fatalf("expected no orders, got %d", len(repo.orders))
		}
	})

	t.Run("sale not started mutates nothing", func(t *testing.T) {
		repo := seedGrabRepo(100)
		repo.addEvent(domain.Event{ID: "event-1", SaleStartAt: grabNow.Add(time.Minute)})
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		_, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if !errors.Is(err, domain.ErrSaleNotStarted) {
			t.Fatalf("expected ErrSaleNotStarted, got %v", err)
		}
		if repo.types["vip"].AvailableQty != 1 || repo.users["user-1"].Balance != 100 || len(repo.orders) != 0 {
			t.Fatalf("expected no mutation, got qty=%d balance=%d orders=%d",
				repo.types["vip"].AvailableQty, repo.users["user-1"].Balance, len(repo.orders))
		}
	})

	t.Run("sale opens exactly at sale start", func(t *testing.T) {
		repo := seedGrabRepo(100)
		repo.addEvent(domain.Event{ID: "event-1", SaleStartAt: grabNow})
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		if _, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "ga"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("sold out checked before balance", func(t *testing.T) {
		repo := seedGrabRepo(0)
		tt := repo.types["vip"]
		tt.AvailableQty = 0
		repo.types["vip"] = tt
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		_, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if !errors.Is(err, domain.ErrSoldOut) {
			t.Fatalf("expected ErrSoldOut, got %v", err)
		}
	})

	t.Run("not found cases", func(t *testing.T) {
		repo := seedGrabRepo(10)
		repo.addEvent(domain.Event{ID: "event-2", SaleStartAt: grabNow.Add(-time.Hour)})
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		cases := []struct {
			name string
			in   GrabInput
			want error
		}{
			{"missing event", GrabInput{UserID: "user-1", EventID: "nope", TicketTypeID: "vip"}, domain.ErrEventNotFound},
			{"missing ticket type", GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "nope"}, domain.ErrTicketTypeNotFound},
			{"ticket type of another event", GrabInput{UserID: "user-1", EventID: "event-2", TicketTypeID: "vip"}, domain.ErrTicketTypeNotFound},
			{"missing user", GrabInput{UserID: "ghost", EventID: "event-1", TicketTypeID: "vip"}, domain.ErrUserNotFound},
			{"empty id", GrabInput{UserID: "user-1", EventID: "event-1"}, domain.ErrInvalidID},
		}
		for _, tc := range cases {
			_, err := svc.Grab(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
		if len(repo.orders) != 0 {
			t.Fatalf("expected no orders, got %d", len(repo.orders))
		}
	})

	t.Run("store failure rolls back partial effects", func(t *testing.T) {
		for _, step := range []string{"DebitUser", "CreateOrder", "AppendOutbox"} {
			repo := seedGrabRepo(10)
			repo.failOn = step
			svc := NewGrabService(repo, clock.NewFixed(grabNow), WithOrderEvents(repo, "ticket.orders"))

			_, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
			if !errors.Is(err, errStoreDown) {
				t.Fatalf("%s: expected store error, got %v", step, err)
			}
			if got := repo.types["vip"].AvailableQty; got != 1 {
				t.Fatalf("%s: expected available_qty 1, got %d", step, got)
			}
			if got := repo.users["user-1"].Balance; got != 10 {
				t.Fatalf("%s: expected balance 10, got %d", step, got)
			}
			if len(repo.orders) != 0 || len(repo.outbox) != 0 {
				t.Fatalf("%s: expected no rows, got orders=%d outbox=%d", step, len(repo.orders), len(repo.outbox))
			}
		}
	})

	t.Run("writes order event with the order", func(t *testing.T) {
		repo := seedGrabRepo(10)
		svc := NewGrabService(repo, clock.NewFixed(grabNow), WithOrderEvents(repo, "ticket.orders"))

		order, err := svc.Grab(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.outbox) != 1 {
			t.Fatalf("expected 1 outbox row, got %d", len(repo.outbox))
		}
		msg := repo.outbox[0]
		if msg.Topic != "ticket.orders" || msg.AggregateID != order.ID || msg.Status != domain.OutboxStatusPending {
			t.Fatalf("unexpected outbox row: %+v", msg)
		}
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["order_id"] != order.ID || payload["ticket_type_id"] != "vip" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	})
}

func TestGrabService_Process(t *testing.T) {
	t.Parallel()

	t.Run("success carries order id", func(t *testing.T) {
		repo := seedGrabRepo(10)
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		res, err := svc.Process(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !res.Succeeded() || res.OrderID == "" {
			t.Fatalf("expected success with order id, got %+v", res)
		}
		if res.OrderID != repo.orders[0].ID {
			t.Fatalf("expected order id %s, got %s", repo.orders[0].ID, res.OrderID)
		}
	})

	t.Run("failure lists in-stock alternatives", func(t *testing.T) {
		repo := seedGrabRepo(5)
		repo.addTicketType(domain.TicketType{ID: "balcony", EventID: "event-1", SeatType: "Balcony", Price: 1, AvailableQty: 0})
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		res, err := svc.Process(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Succeeded() {
			t.Fatalf("expected failure")
		}
		if res.Reason != domain.ReasonInsufficientBalance {
			t.Fatalf("expected reason %s, got %s", domain.ReasonInsufficientBalance, res.Reason)
		}
		want := []domain.SeatCount{{TicketTypeID: "ga", SeatType: "GA", AvailableQty: 5}}
		if len(res.Alternatives) != 1 || res.Alternatives[0] != want[0] {
			t.Fatalf("expected alternatives %v, got %v", want, res.Alternatives)
		}
	})

	t.Run("store failure reports internal error", func(t *testing.T) {
		repo := seedGrabRepo(10)
		repo.failOn = "DecrementTicketType"
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		res, err := svc.Process(context.Background(), GrabInput{UserID: "user-1", EventID: "event-1", TicketTypeID: "vip"})
		if !errors.Is(err, errStoreDown) {
			t.Fatalf("expected store error, got %v", err)
		}
		if res.Reason != domain.ReasonInternal {
			t.Fatalf("expected reason %s, got %s", domain.ReasonInternal, res.Reason)
		}
		if res.Alternatives == nil {
			t.Fatalf("expected non-nil alternatives")
		}
	})

	t.Run("missing event yields empty alternatives", func(t *testing.T) {
		repo := seedGrabRepo(10)
		svc := NewGrabService(repo, clock.NewFixed(grabNow))

		res, err := svc.Process(context.Background(), GrabInput{UserID: "user-1", EventID: "nope", TicketTypeID: "vip"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Reason != domain.ReasonNotFound {
			t.Fatalf("expected reason %s, got %s", domain.ReasonNotFound, res.Reason)
		}
		if len(res.Alternatives) != 0 {
			t.Fatalf("expected no alternatives, got %v", res.Alternatives)
		}
	})
}

func TestGrabService_SeatCounts(t *testing.T) {
	repo := seedGrabRepo(10)
	svc := NewGrabService(repo, clock.NewFixed(grabNow))

	counts, err := svc.SeatCounts(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("seat counts: %v", err)
	}
	if len(counts) != 2 || counts[0].TicketTypeID != "vip" || counts[1].AvailableQty != 5 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
