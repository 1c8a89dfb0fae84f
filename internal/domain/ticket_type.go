package domain

// TicketType is a priced seat category of one event.
type TicketType struct {
	ID           string
	EventID      string
	SeatType     string
	Price        int64
	InitialQty   int
	AvailableQty int
}

// SeatCount is the public availability of one ticket type.
type SeatCount struct {
	TicketTypeID string
	SeatType     string
	AvailableQty int
}

// SeatSnapshot is the availability of every ticket type of an event.
// Version grows with every publish for the event; receivers ignore
// snapshots older than the last one they applied.
type SeatSnapshot struct {
	EventID string
	Version uint64
	Tickets []SeatCount
}

// SeatCounts converts ticket types to their public availability, preserving order.
func SeatCounts(types []TicketType) []SeatCount {
	out := make([]SeatCount, 0, len(types))
	for _, tt := range types {
		out = append(out, tt.SeatCount())
	}
	return out
}

func (t TicketType) SeatCount() SeatCount {
	return SeatCount{
		TicketTypeID: t.ID,
		SeatType:     t.SeatType,
		AvailableQty: t.AvailableQty,
	}
}
