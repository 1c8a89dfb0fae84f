package domain

import "time"

// Order is the immutable record of one successful grab.
type Order struct {
	ID           string
	UserID       string
	EventID      string
	TicketTypeID string
	Price        int64
	CreatedAt    time.Time
}

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxMessage is an order event written in the grab transaction and
// forwarded to the message broker afterwards.
type OutboxMessage struct {
	ID          string
	Topic       string
	AggregateID string
	Payload     []byte
	Status      OutboxStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
}
