package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cimillas/grabticket/internal/domain"
)

const (
	actionGrab = "grab"

	messageSeatCounts = "seat_counts"
	messageGrabResult = "grab_result"
	messageError      = "error"

	reasonInvalidMessage = "invalid_message"
	reasonUnknownAction  = "unknown_action"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownAction  = errors.New("unknown action")
)

type clientMessage struct {
	Action       string          `json:"action"`
	TicketTypeID json.RawMessage `json:"ticket_type_id"`
}

type grabCommand struct {
	TicketTypeID string
}

// parseClientMessage decodes one inbound frame. The ticket type id may be
// sent as a JSON string or number.
func parseClientMessage(data []byte) (grabCommand, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return grabCommand{}, ErrInvalidMessage
	}
	if msg.Action != actionGrab {
		if msg.Action == "" {
			return grabCommand{}, ErrInvalidMessage
		}
		return grabCommand{}, ErrUnknownAction
	}

	id, err := decodeFlexibleID(msg.TicketTypeID)
	if err != nil {
		return grabCommand{}, err
	}
	return grabCommand{TicketTypeID: id}, nil
}

func decodeFlexibleID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrInvalidMessage
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", ErrInvalidMessage
		}
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", ErrInvalidMessage
	}
	if _, err := n.Int64(); err != nil {
		return "", ErrInvalidMessage
	}
	return n.String(), nil
}

func protocolReason(err error) string {
	if errors.Is(err, ErrUnknownAction) {
		return reasonUnknownAction
	}
	return reasonInvalidMessage
}

type seatCountPayload struct {
	TicketTypeID string `json:"ticket_type_id"`
	SeatType     string `json:"seat_type"`
	AvailableQty int    `json:"available_qty"`
}

type seatCountsMessage struct {
	Type    string             `json:"type"`
	Tickets []seatCountPayload `json:"tickets"`
}

type grabSuccessMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
}

type grabFailMessage struct {
	Type         string             `json:"type"`
	Status       string             `json:"status"`
	Reason       string             `json:"reason"`
	Alternatives []seatCountPayload `json:"alternatives"`
}

type errorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func seatCountPayloads(counts []domain.SeatCount) []seatCountPayload {
	out := make([]seatCountPayload, 0, len(counts))
	for _, c := range counts {
		out = append(out, seatCountPayload{
			TicketTypeID: c.TicketTypeID,
			SeatType:     c.SeatType,
			AvailableQty: c.AvailableQty,
		})
	}
	return out
}

func encodeSnapshot(snapshot domain.SeatSnapshot) ([]byte, error) {
	return json.Marshal(seatCountsMessage{
		Type:    messageSeatCounts,
		Tickets: seatCountPayloads(snapshot.Tickets),
	})
}

func encodeGrabResult(result domain.GrabResult) ([]byte, error) {
	if result.Succeeded() {
		return json.Marshal(grabSuccessMessage{
			Type:    messageGrabResult,
			Status:  string(domain.GrabStatusSuccess),
			OrderID: result.OrderID,
		})
	}
	return json.Marshal(grabFailMessage{
		Type:         messageGrabResult,
		Status:       string(domain.GrabStatusFail),
		Reason:       result.Reason,
		Alternatives: seatCountPayloads(result.Alternatives),
	})
}

func encodeError(reason string) ([]byte, error) {
	return json.Marshal(errorMessage{Type: messageError, Reason: reason})
}
