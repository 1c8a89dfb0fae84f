package domain

import "errors"

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrTicketTypeNotFound  = errors.New("ticket type not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrSaleNotStarted      = errors.New("sale not started")
	ErrSoldOut             = errors.New("tickets sold out")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidID           = errors.New("invalid id")
	ErrQueueFull           = errors.New("grab queue full")
	ErrQueueClosed         = errors.New("grab queue closed")

	ErrEventTitleRequired = errors.New("event title required")
	ErrSeatTypeRequired   = errors.New("seat type required")
	ErrUsernameRequired   = errors.New("username required")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidBalance     = errors.New("invalid balance")
)
