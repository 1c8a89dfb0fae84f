package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cimillas/grabticket/internal/app"
	"github.com/cimillas/grabticket/internal/auth"
	"github.com/cimillas/grabticket/internal/domain"
	"github.com/cimillas/grabticket/internal/metrics"
	"github.com/cimillas/grabticket/internal/realtime"
)

// GrabSubmitter accepts grab requests for asynchronous processing.
type GrabSubmitter interface {
	Submit(req app.GrabRequest) error
}

// SubscriptionRegistry tracks which sockets watch which event.
type SubscriptionRegistry interface {
	Subscribe(ctx context.Context, eventID string, sub realtime.Subscriber) error
	Unsubscribe(eventID string, sub realtime.Subscriber)
}

type WSHandlerConfig struct {
	SendBuffer int
	Origins    OriginPolicy
}

// WSHandler serves the per-event seat-count and grab socket.
type WSHandler struct {
	verifier   auth.Verifier
	registry   SubscriptionRegistry
	queue      GrabSubmitter
	logger     *zap.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewWSHandler(verifier auth.Verifier, registry SubscriptionRegistry, queue GrabSubmitter, logger *zap.Logger, cfg WSHandlerConfig) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		verifier:   verifier,
		registry:   registry,
		queue:      queue,
		logger:     logger.With(zap.String("component", "ws")),
		sendBuffer: cfg.SendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.Origins.CheckOrigin,
		},
	}
}

func credentialFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx := r.Context()
	userID, err := h.verifier.Verify(ctx, credentialFromRequest(r))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredential) {
			h.logger.Warn("credential check failed", zap.Error(err))
		}
		metrics.ConnectionsRejected.WithLabelValues("unauthorized").Inc()
		h.reject(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	logger := h.logger.With(zap.String("event_id", eventID), zap.String("user_id", userID))
	c := newWSConn(conn, h.sendBuffer, logger)
	go c.writePump()

	if err := h.registry.Subscribe(ctx, eventID, c); err != nil {
		logger.Warn("subscribe failed", zap.Error(err))
		c.closeWith(websocket.CloseInternalServerErr, "subscribe failed")
		<-c.finished
		return
	}
	defer h.registry.Unsubscribe(eventID, c)

	stop := context.AfterFunc(ctx, func() {
		c.closeWith(websocket.CloseGoingAway, "server shutdown")
	})
	defer stop()

	logger.Debug("viewer connected")
	h.readLoop(c, userID, eventID)
	c.closeWith(websocket.CloseNormalClosure, "")
	<-c.finished
	logger.Debug("viewer disconnected")
}

func (h *WSHandler) reject(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = conn.Close()
}

// readLoop turns inbound frames into queue submissions until the socket
// fails. Grabs already submitted keep running after it returns.
func (h *WSHandler) readLoop(c *wsConn, userID, eventID string) {
	c.prepareRead()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		cmd, err := parseClientMessage(data)
		if err != nil {
			if sendErr := c.sendError(protocolReason(err)); sendErr != nil {
				return
			}
			continue
		}

		err = h.queue.Submit(app.GrabRequest{
			UserID:       userID,
			EventID:      eventID,
			TicketTypeID: cmd.TicketTypeID,
			Reply:        c,
			SubmittedAt:  time.Now(),
		})
		if err != nil {
			result := domain.GrabResult{
				Status:       domain.GrabStatusFail,
				Reason:       domain.FailureReason(err),
				Alternatives: []domain.SeatCount{},
			}
			if sendErr := c.DeliverGrabResult(result); sendErr != nil {
				return
			}
		}
	}
}
