package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/grabticket/internal/app"
	"github.com/cimillas/grabticket/internal/domain"
)

// CatalogReader is the read side of the catalog used by public endpoints.
type CatalogReader interface {
	ListEvents(ctx context.Context) ([]domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (app.EventDetail, error)
}

type eventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Organizer   string    `json:"organizer,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	SaleStartAt time.Time `json:"sale_start_at"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	SeatMapURL  string    `json:"seat_map_url,omitempty"`
	CoverImage  string    `json:"cover_image,omitempty"`
}

type ticketTypeResponse struct {
	ID           string `json:"id"`
	EventID      string `json:"event_id"`
	SeatType     string `json:"seat_type"`
	Price        int64  `json:"price"`
	InitialQty   int    `json:"initial_qty"`
	AvailableQty int    `json:"available_qty"`
}

type eventDetailResponse struct {
	eventResponse
	TicketTypes []ticketTypeResponse `json:"ticket_types"`
}

func toEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Organizer:   e.Organizer,
		Location:    e.Location,
		Description: e.Description,
		SaleStartAt: e.SaleStartAt,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		SeatMapURL:  e.SeatMapURL,
		CoverImage:  e.CoverImage,
	}
}

func toTicketTypeResponse(tt domain.TicketType) ticketTypeResponse {
	return ticketTypeResponse{
		ID:           tt.ID,
		EventID:      tt.EventID,
		SeatType:     tt.SeatType,
		Price:        tt.Price,
		InitialQty:   tt.InitialQty,
		AvailableQty: tt.AvailableQty,
	}
}

// HandleListEvents returns every event ordered by sale start.
func HandleListEvents(svc CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]eventResponse, 0, len(events))
		for _, event := range events {
			resp = append(resp, toEventResponse(event))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGetEvent returns one event with its ticket types.
func HandleGetEvent(svc CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := eventDetailResponse{
			eventResponse: toEventResponse(detail.Event),
			TicketTypes:   make([]ticketTypeResponse, 0, len(detail.TicketTypes)),
		}
		for _, tt := range detail.TicketTypes {
			resp.TicketTypes = append(resp.TicketTypes, toTicketTypeResponse(tt))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
