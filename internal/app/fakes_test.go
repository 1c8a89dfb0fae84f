package app

import (
	"context"
	"errors"

	"github.com/cimillas/grabticket/internal/domain"
)

var errStoreDown = errors.New("store down")

// fakeGrabRepo keeps rows in maps and restores them when a transaction fails.
// It is not safe for concurrent use; the grab worker is its only caller.
type fakeGrabRepo struct {
	events  map[string]domain.Event
	types   map[string]domain.TicketType
	typeIDs []string
	users   map[string]domain.User
	orders  []domain.Order
	outbox  []domain.OutboxMessage

	// failOn names the method that returns errStoreDown.
	failOn string
}

func newFakeGrabRepo() *fakeGrabRepo {
	return &fakeGrabRepo{
		events: map[string]domain.Event{},
		types:  map[string]domain.TicketType{},
		users:  map[string]domain.User{},
	}
}

func (f *fakeGrabRepo) addEvent(e domain.Event) {
	f.events[e.ID] = e
}

func (f *fakeGrabRepo) addTicketType(tt domain.TicketType) {
	if tt.InitialQty == 0 {
		tt.InitialQty = tt.AvailableQty
	}
	f.types[tt.ID] = tt
	f.typeIDs = append(f.typeIDs, tt.ID)
}

func (f *fakeGrabRepo) addUser(u domain.User) {
	f.users[u.ID] = u
}

func (f *fakeGrabRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	types := make(map[string]domain.TicketType, len(f.types))
	for k, v := range f.types {
		types[k] = v
	}
	users := make(map[string]domain.User, len(f.users))
	for k, v := range f.users {
		users[k] = v
	}
	orders := len(f.orders)
	outbox := len(f.outbox)

	if err := fn(ctx); err != nil {
		f.types = types
		f.users = users
		f.orders = f.orders[:orders]
		f.outbox = f.outbox[:outbox]
		return err
	}
	return nil
}

func (f *fakeGrabRepo) GetEvent(_ context.Context, eventID string) (domain.Event, error) {
	if f.failOn == "GetEvent" {
		return domain.Event{}, errStoreDown
	}
	e, ok := f.events[eventID]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeGrabRepo) GetTicketTypeForUpdate(_ context.Context, eventID, ticketTypeID string) (domain.TicketType, error) {
	tt, ok := f.types[ticketTypeID]
	if !ok || tt.EventID != eventID {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	return tt, nil
}

func (f *fakeGrabRepo) GetUserForUpdate(_ context.Context, userID string) (domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeGrabRepo) DecrementTicketType(_ context.Context, ticketTypeID string) error {
	if f.failOn == "DecrementTicketType" {
		return errStoreDown
	}
	tt := f.types[ticketTypeID]
	if tt.AvailableQty <= 0 {
		return domain.ErrSoldOut
	}
	tt.AvailableQty--
	f.types[ticketTypeID] = tt
	return nil
}

func (f *fakeGrabRepo) DebitUser(_ context.Context, userID string, amount int64) error {
	if f.failOn == "DebitUser" {
		return errStoreDown
	}
	u := f.users[userID]
	if u.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	u.Balance -= amount
	f.users[userID] = u
	return nil
}

func (f *fakeGrabRepo) CreateOrder(_ context.Context, order domain.Order) error {
	if f.failOn == "CreateOrder" {
		return errStoreDown
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeGrabRepo) AppendOutbox(_ context.Context, msg domain.OutboxMessage) error {
	if f.failOn == "AppendOutbox" {
		return errStoreDown
	}
	f.outbox = append(f.outbox, msg)
	return nil
}

func (f *fakeGrabRepo) ListTicketTypes(_ context.Context, eventID string) ([]domain.TicketType, error) {
	if f.failOn == "ListTicketTypes" {
		return nil, errStoreDown
	}
	var out []domain.TicketType
	for _, id := range f.typeIDs {
		if tt := f.types[id]; tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	return out, nil
}

func (f *fakeGrabRepo) ordersFor(ticketTypeID string) int {
	n := 0
	for _, o := range f.orders {
		if o.TicketTypeID == ticketTypeID {
			n++
		}
	}
	return n
}
