package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cimillas/grabticket/internal/clock"
	"github.com/cimillas/grabticket/internal/domain"
)

// GrabRepository is the store surface the grab transaction needs. Methods
// called with a context returned by WithTx run inside that transaction.
type GrabRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	GetTicketTypeForUpdate(ctx context.Context, eventID, ticketTypeID string) (domain.TicketType, error)
	GetUserForUpdate(ctx context.Context, userID string) (domain.User, error)
	DecrementTicketType(ctx context.Context, ticketTypeID string) error
	DebitUser(ctx context.Context, userID string, amount int64) error
	CreateOrder(ctx context.Context, order domain.Order) error
	ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error)
}

// OutboxWriter stores an order event in the caller's transaction.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, msg domain.OutboxMessage) error
}

// GrabService performs one grab as a single store transaction.
type GrabService struct {
	repo        GrabRepository
	clock       clock.Clock
	outbox      OutboxWriter
	ordersTopic string
}

type GrabServiceOption func(*GrabService)

// WithOrderEvents records an order.placed message for every successful grab
// in the same transaction as the order itself.
func WithOrderEvents(w OutboxWriter, topic string) GrabServiceOption {
	return func(s *GrabService) {
		if w != nil && topic != "" {
			s.outbox = w
			s.ordersTopic = topic
		}
	}
}

func NewGrabService(repo GrabRepository, clk clock.Clock, opts ...GrabServiceOption) *GrabService {
	svc := &GrabService{
		repo:  repo,
		clock: clk,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type GrabInput struct {
	UserID       string
	EventID      string
	TicketTypeID string
}

// Grab buys one unit of a ticket type for a user. On success the order, the
// stock decrement and the balance debit are committed together; on any error
// nothing is.
func (s *GrabService) Grab(ctx context.Context, in GrabInput) (domain.Order, error) {
	if in.UserID == "" || in.EventID == "" || in.TicketTypeID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}

	event, err := s.repo.GetEvent(ctx, in.EventID)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	if !event.SaleOpen(now) {
		return domain.Order{}, domain.ErrSaleNotStarted
	}

	var result domain.Order
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Lock order is ticket type, then user.
		tt, err := s.repo.GetTicketTypeForUpdate(txCtx, in.EventID, in.TicketTypeID)
		if err != nil {
			return err
		}
		user, err := s.repo.GetUserForUpdate(txCtx, in.UserID)
		if err != nil {
			return err
		}

		if tt.AvailableQty <= 0 {
			return domain.ErrSoldOut
		}
		if user.Balance < tt.Price {
			return domain.ErrInsufficientBalance
		}

		if err := s.repo.DecrementTicketType(txCtx, tt.ID); err != nil {
			return err
		}
		if err := s.repo.DebitUser(txCtx, user.ID, tt.Price); err != nil {
			return err
		}

		order := domain.Order{
			ID:           newID(),
			UserID:       user.ID,
			EventID:      in.EventID,
			TicketTypeID: tt.ID,
			Price:        tt.Price,
			CreatedAt:    now,
		}
		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if s.outbox != nil {
			msg, err := s.orderPlacedMessage(order)
			if err != nil {
				return err
			}
			if err := s.outbox.AppendOutbox(txCtx, msg); err != nil {
				return err
			}
		}

		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// Alternatives lists the other in-stock ticket types of an event.
func (s *GrabService) Alternatives(ctx context.Context, eventID, excludeTicketTypeID string) ([]domain.SeatCount, error) {
	types, err := s.repo.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SeatCount, 0, len(types))
	for _, tt := range types {
		if tt.ID == excludeTicketTypeID || tt.AvailableQty <= 0 {
			continue
		}
		out = append(out, tt.SeatCount())
	}
	return out, nil
}

// SeatCounts returns the current availability of every ticket type of an event.
func (s *GrabService) SeatCounts(ctx context.Context, eventID string) ([]domain.SeatCount, error) {
	types, err := s.repo.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return domain.SeatCounts(types), nil
}

// Process runs Grab and shapes the outcome for the requester. The returned
// error is non-nil only for store failures; business rejections are carried
// in the result.
func (s *GrabService) Process(ctx context.Context, in GrabInput) (domain.GrabResult, error) {
	order, err := s.Grab(ctx, in)
	if err == nil {
		return domain.GrabResult{
			Status:  domain.GrabStatusSuccess,
			OrderID: order.ID,
		}, nil
	}

	result := domain.GrabResult{
		Status:       domain.GrabStatusFail,
		Reason:       domain.FailureReason(err),
		Alternatives: []domain.SeatCount{},
	}
	var grabErr error
	if !domain.IsBusinessFailure(err) {
		grabErr = err
	}

	if in.EventID != "" {
		alts, altErr := s.Alternatives(ctx, in.EventID, in.TicketTypeID)
		if altErr != nil {
			if grabErr == nil {
				grabErr = fmt.Errorf("list alternatives: %w", altErr)
			}
		} else {
			result.Alternatives = alts
		}
	}
	return result, grabErr
}

type orderPlacedPayload struct {
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	TicketTypeID string    `json:"ticket_type_id"`
	Price        int64     `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *GrabService) orderPlacedMessage(order domain.Order) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(orderPlacedPayload{
		OrderID:      order.ID,
		UserID:       order.UserID,
		EventID:      order.EventID,
		TicketTypeID: order.TicketTypeID,
		Price:        order.Price,
		CreatedAt:    order.CreatedAt,
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("encode order event: %w", err)
	}
	return domain.OutboxMessage{
		ID:          newID(),
		Topic:       s.ordersTopic,
		AggregateID: order.ID,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   order.CreatedAt,
	}, nil
}
