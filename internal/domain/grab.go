package domain

import "errors"

type GrabStatus string

const (
	GrabStatusSuccess GrabStatus = "success"
	GrabStatusFail    GrabStatus = "fail"
)

// Failure reasons sent to the requester.
const (
	ReasonNotFound            = "not_found"
	ReasonSaleNotStarted      = "sale_not_started"
	ReasonSoldOut             = "sold_out"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonQueueFull           = "queue_full"
	ReasonUnavailable         = "service_unavailable"
	ReasonInternal            = "internal_error"
)

// GrabResult is the outcome delivered to the requester of one grab.
type GrabResult struct {
	Status       GrabStatus
	OrderID      string
	Reason       string
	Alternatives []SeatCount
}

func (r GrabResult) Succeeded() bool {
	return r.Status == GrabStatusSuccess
}

// FailureReason maps a grab error to its wire reason.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrTicketTypeNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidID):
		return ReasonNotFound
	case errors.Is(err, ErrSaleNotStarted):
		return ReasonSaleNotStarted
	case errors.Is(err, ErrSoldOut):
		return ReasonSoldOut
	case errors.Is(err, ErrInsufficientBalance):
		return ReasonInsufficientBalance
	case errors.Is(err, ErrQueueFull):
		return ReasonQueueFull
	case errors.Is(err, ErrQueueClosed):
		return ReasonUnavailable
	default:
		return ReasonInternal
	}
}

// IsBusinessFailure reports whether err is an expected grab rejection rather
// than a store or infrastructure failure.
func IsBusinessFailure(err error) bool {
	return FailureReason(err) != ReasonInternal
}
