// Package memory is an in-process inventory store with the same semantics as
// the Postgres one. Transactions take a store-wide lock.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/cimillas/grabticket/internal/domain"
)

type txKey struct{}

type state struct {
	events     map[string]domain.Event
	eventOrder []string
	types      map[string]domain.TicketType
	typeOrder  []string
	users      map[string]domain.User
	usernames  map[string]string
	orders     []domain.Order
	outbox     []domain.OutboxMessage
}

func (st state) clone() state {
	return state{
		events:     maps.Clone(st.events),
		eventOrder: slices.Clone(st.eventOrder),
		types:      maps.Clone(st.types),
		typeOrder:  slices.Clone(st.typeOrder),
		users:      maps.Clone(st.users),
		usernames:  maps.Clone(st.usernames),
		orders:     slices.Clone(st.orders),
		outbox:     slices.Clone(st.outbox),
	}
}

type Store struct {
	mu sync.Mutex
	st state
}

func NewStore() *Store {
	return &Store{
		st: state{
			events:    map[string]domain.Event{},
			types:     map[string]domain.TicketType{},
			users:     map[string]domain.User{},
			usernames: map[string]string{},
		},
	}
}

// WithTx runs fn holding the store lock and restores the previous state when
// fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = saved
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) locked(ctx context.Context, fn func()) {
	if s.inTx(ctx) {
		fn()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	s.locked(ctx, func() {
		if _, ok := s.st.events[event.ID]; !ok {
			s.st.eventOrder = append(s.st.eventOrder, event.ID)
		}
		s.st.events[event.ID] = event
	})
	return nil
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	s.locked(ctx, func() {
		out = make([]domain.Event, 0, len(s.st.eventOrder))
		for _, id := range s.st.eventOrder {
			out = append(out, s.st.events[id])
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SaleStartAt.Before(out[j].SaleStartAt)
	})
	return out, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var (
		event domain.Event
		ok    bool
	)
	s.locked(ctx, func() {
		event, ok = s.st.events[eventID]
	})
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return event, nil
}

func (s *Store) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	var err error
	s.locked(ctx, func() {
		if _, ok := s.st.events[tt.EventID]; !ok {
			err = domain.ErrEventNotFound
			return
		}
		if tt.AvailableQty < 0 || tt.AvailableQty > tt.InitialQty {
			err = domain.ErrInvalidQuantity
			return
		}
		if _, ok := s.st.types[tt.ID]; !ok {
			s.st.typeOrder = append(s.st.typeOrder, tt.ID)
		}
		s.st.types[tt.ID] = tt
	})
	return err
}

func (s *Store) ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	out := []domain.TicketType{}
	s.locked(ctx, func() {
		for _, id := range s.st.typeOrder {
			if tt := s.st.types[id]; tt.EventID == eventID {
				out = append(out, tt)
			}
		}
	})
	return out, nil
}

// GetTicketTypeForUpdate needs no row lock here; WithTx already holds the
// store lock.
func (s *Store) GetTicketTypeForUpdate(ctx context.Context, eventID, ticketTypeID string) (domain.TicketType, error) {
	var (
		tt domain.TicketType
		ok bool
	)
	s.locked(ctx, func() {
		tt, ok = s.st.types[ticketTypeID]
	})
	if !ok || tt.EventID != eventID {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	return tt, nil
}

func (s *Store) DecrementTicketType(ctx context.Context, ticketTypeID string) error {
	var err error
	s.locked(ctx, func() {
		tt, ok := s.st.types[ticketTypeID]
		if !ok {
			err = domain.ErrTicketTypeNotFound
			return
		}
		if tt.AvailableQty <= 0 {
			err = domain.ErrSoldOut
			return
		}
		tt.AvailableQty--
		s.st.types[ticketTypeID] = tt
	})
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	var err error
	s.locked(ctx, func() {
		if owner, taken := s.st.usernames[user.Username]; taken && owner != user.ID {
			err = domain.ErrUsernameTaken
			return
		}
		if user.Balance < 0 {
			err = domain.ErrInvalidBalance
			return
		}
		s.st.users[user.ID] = user
		s.st.usernames[user.Username] = user.ID
	})
	return err
}

func (s *Store) GetUserForUpdate(ctx context.Context, userID string) (domain.User, error) {
	var (
		user domain.User
		ok   bool
	)
	s.locked(ctx, func() {
		user, ok = s.st.users[userID]
	})
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) DebitUser(ctx context.Context, userID string, amount int64) error {
	var err error
	s.locked(ctx, func() {
		user, ok := s.st.users[userID]
		if !ok {
			err = domain.ErrUserNotFound
			return
		}
		if user.Balance < amount {
			err = domain.ErrInsufficientBalance
			return
		}
		user.Balance -= amount
		s.st.users[userID] = user
	})
	return err
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	s.locked(ctx, func() {
		s.st.orders = append(s.st.orders, order)
	})
	return nil
}

// Orders returns every order for a ticket type, oldest first.
func (s *Store) Orders(ctx context.Context, ticketTypeID string) []domain.Order {
	var out []domain.Order
	s.locked(ctx, func() {
		for _, o := range s.st.orders {
			if o.TicketTypeID == ticketTypeID {
				out = append(out, o)
			}
		}
	})
	return out
}

func (s *Store) AppendOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = domain.OutboxStatusPending
	}
	s.locked(ctx, func() {
		s.st.outbox = append(s.st.outbox, msg)
	})
	return nil
}

func (s *Store) FetchUnsent(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	var out []domain.OutboxMessage
	s.locked(ctx, func() {
		for _, msg := range s.st.outbox {
			if len(out) >= limit {
				return
			}
			if msg.Status != domain.OutboxStatusSent {
				out = append(out, msg)
			}
		}
	})
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	s.updateOutbox(ctx, id, func(msg *domain.OutboxMessage) {
		msg.Status = domain.OutboxStatusSent
		msg.Attempts++
		msg.LastError = ""
	})
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, reason string, attempts int) error {
	s.updateOutbox(ctx, id, func(msg *domain.OutboxMessage) {
		msg.Status = domain.OutboxStatusFailed
		msg.Attempts += attempts
		msg.LastError = reason
	})
	return nil
}

func (s *Store) updateOutbox(ctx context.Context, id string, fn func(msg *domain.OutboxMessage)) {
	s.locked(ctx, func() {
		for i := range s.st.outbox {
			if s.st.outbox[i].ID == id {
				fn(&s.st.outbox[i])
				return
			}
		}
	})
}
