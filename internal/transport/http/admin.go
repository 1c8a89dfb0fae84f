package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/grabticket/internal/app"
	"github.com/cimillas/grabticket/internal/domain"
)

// AdminService is the minimal interface needed for admin seeding endpoints.
type AdminService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	CreateTicketType(ctx context.Context, in app.CreateTicketTypeInput) (domain.TicketType, error)
	CreateUser(ctx context.Context, in app.CreateUserInput) (domain.User, error)
}

type createEventRequest struct {
	Title       string `json:"title"`
	Organizer   string `json:"organizer,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	SaleStartAt string `json:"sale_start_at,omitempty"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
	SeatMapURL  string `json:"seat_map_url,omitempty"`
	CoverImage  string `json:"cover_image,omitempty"`
}

type createTicketTypeRequest struct {
	SeatType string `json:"seat_type"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseOptionalTime(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// HandleAdminCreateEvent creates an event.
func HandleAdminCreateEvent(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEventRequest
		if err := decodeStrict(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		in := app.CreateEventInput{
			Title:       req.Title,
			Organizer:   req.Organizer,
			Location:    req.Location,
			Description: req.Description,
			SeatMapURL:  req.SeatMapURL,
			CoverImage:  req.CoverImage,
		}
		for _, field := range []struct {
			name string
			raw  string
			dst  **time.Time
		}{
			{"sale_start_at", req.SaleStartAt, &in.SaleStartAt},
			{"starts_at", req.StartsAt, &in.StartsAt},
			{"ends_at", req.EndsAt, &in.EndsAt},
		} {
			parsed, ok := parseOptionalTime(field.raw)
			if !ok {
				writeError(w, http.StatusBadRequest, codeInvalidTime, "invalid "+field.name+" format")
				return
			}
			*field.dst = parsed
		}

		event, err := svc.CreateEvent(r.Context(), in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEventResponse(event))
	}
}

// HandleAdminCreateTicketType adds a ticket type to the event in the path.
func HandleAdminCreateTicketType(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTicketTypeRequest
		if err := decodeStrict(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		tt, err := svc.CreateTicketType(r.Context(), app.CreateTicketTypeInput{
			EventID:  chi.URLParam(r, "eventID"),
			SeatType: req.SeatType,
			Price:    req.Price,
			Quantity: req.Quantity,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTicketTypeResponse(tt))
	}
}

// HandleAdminCreateUser creates a user with an initial balance.
func HandleAdminCreateUser(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := decodeStrict(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		user, err := svc.CreateUser(r.Context(), app.CreateUserInput{
			Username: req.Username,
			Balance:  req.Balance,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, userResponse{
			ID:       user.ID,
			Username: user.Username,
			Balance:  user.Balance,
		})
	}
}
