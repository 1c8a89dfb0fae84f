package domain

import "time"

// Event is a ticketed event. Grabs are rejected before SaleStartAt.
type Event struct {
	ID          string
	Title       string
	Organizer   string
	Location    string
	Description string
	SaleStartAt time.Time
	StartsAt    time.Time
	EndsAt      time.Time
	SeatMapURL  string
	CoverImage  string
}

// SaleOpen reports whether grabs are accepted at now.
func (e Event) SaleOpen(now time.Time) bool {
	return !now.Before(e.SaleStartAt)
}
