package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/grabticket/internal/clock"
	"github.com/cimillas/grabticket/internal/domain"
)

type CatalogRepository interface {
	CreateEvent(ctx context.Context, event domain.Event) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	CreateTicketType(ctx context.Context, tt domain.TicketType) error
	ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error)
	CreateUser(ctx context.Context, user domain.User) error
}

// CatalogService serves event read paths and the administrative seeding used
// to populate the store.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateEventInput struct {
	Title       string
	Organizer   string
	Location    string
	Description string
	SaleStartAt *time.Time
	StartsAt    *time.Time
	EndsAt      *time.Time
	SeatMapURL  string
	CoverImage  string
}

// CreateEvent stores a new event. A missing sale start opens the sale
// immediately; missing start and end times default to the sale start.
func (s *CatalogService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Event{}, domain.ErrEventTitleRequired
	}

	saleStartAt := s.clock.Now()
	if in.SaleStartAt != nil {
		saleStartAt = in.SaleStartAt.UTC()
	}
	startsAt := saleStartAt
	if in.StartsAt != nil {
		startsAt = in.StartsAt.UTC()
	}
	endsAt := startsAt
	if in.EndsAt != nil {
		endsAt = in.EndsAt.UTC()
	}

	event := domain.Event{
		ID:          newID(),
		Title:       title,
		Organizer:   in.Organizer,
		Location:    in.Location,
		Description: in.Description,
		SaleStartAt: saleStartAt,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		SeatMapURL:  in.SeatMapURL,
		CoverImage:  in.CoverImage,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *CatalogService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

// EventDetail is an event with its ticket types and current availability.
type EventDetail struct {
	Event       domain.Event
	TicketTypes []domain.TicketType
}

func (s *CatalogService) GetEvent(ctx context.Context, eventID string) (EventDetail, error) {
	if eventID == "" {
		return EventDetail{}, domain.ErrInvalidID
	}
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return EventDetail{}, err
	}
	types, err := s.repo.ListTicketTypes(ctx, eventID)
	if err != nil {
		return EventDetail{}, err
	}
	return EventDetail{Event: event, TicketTypes: types}, nil
}

type CreateTicketTypeInput struct {
	EventID  string
	SeatType string
	Price    int64
	Quantity int
}

func (s *CatalogService) CreateTicketType(ctx context.Context, in CreateTicketTypeInput) (domain.TicketType, error) {
	if in.EventID == "" {
		return domain.TicketType{}, domain.ErrInvalidID
	}
	seatType := strings.TrimSpace(in.SeatType)
	if seatType == "" {
		return domain.TicketType{}, domain.ErrSeatTypeRequired
	}
	if in.Price < 0 {
		return domain.TicketType{}, domain.ErrInvalidPrice
	}
	if in.Quantity <= 0 {
		return domain.TicketType{}, domain.ErrInvalidQuantity
	}
	if _, err := s.repo.GetEvent(ctx, in.EventID); err != nil {
		return domain.TicketType{}, err
	}

	tt := domain.TicketType{
		ID:           newID(),
		EventID:      in.EventID,
		SeatType:     seatType,
		Price:        in.Price,
		InitialQty:   in.Quantity,
		AvailableQty: in.Quantity,
	}
	if err := s.repo.CreateTicketType(ctx, tt); err != nil {
		return domain.TicketType{}, err
	}
	return tt, nil
}

type CreateUserInput struct {
	Username string
	Balance  int64
}

func (s *CatalogService) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return domain.User{}, domain.ErrUsernameRequired
	}
	if in.Balance < 0 {
		return domain.User{}, domain.ErrInvalidBalance
	}

	user := domain.User{
		ID:       newID(),
		Username: username,
		Balance:  in.Balance,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
