package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/http/middleware"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
	liveReadLimit  = 4 << 10
)

// LiveMessage is one frame pushed over a live socket.
type LiveMessage struct {
	Type         string                     `json:"type"`
	Appointments []appointments.Appointment `json:"appointments,omitempty"`
	Exists       *bool                      `json:"exists,omitempty"`
	Appointment  *appointments.Appointment  `json:"appointment,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// LiveHandler bridges live subscriptions onto WebSocket clients. Each socket
// owns exactly one subscription, released when the socket closes.
type LiveHandler struct {
	service  *appointments.Service
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewLiveHandler(service *appointments.Service, allowedOrigins []string, logger *logging.Logger) *LiveHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LiveHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     middleware.NewOriginPolicy(allowedOrigins).AllowsRequest,
		},
		logger: logger,
	}
}

// Admin handles GET /admin/live: the sorted list on connect and on every change.
func (h *LiveHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "admin", func(ctx context.Context, push func(LiveMessage), fail func(error)) appointments.Unsubscribe {
		return h.service.SubscribeAll(ctx, func(list []appointments.Appointment) {
			push(LiveMessage{Type: "appointments", Appointments: list})
		}, fail)
	})
}

// Appointment handles GET /appointments/{id}/live. A missing appointment is
// pushed as exists=false and the socket keeps waiting.
func (h *LiveHandler) Appointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.serve(w, r, "patient", func(ctx context.Context, push func(LiveMessage), fail func(error)) appointments.Unsubscribe {
		return h.service.SubscribeOne(ctx, id, func(appt *appointments.Appointment) {
			exists := appt != nil
			push(LiveMessage{Type: "appointment", Exists: &exists, Appointment: appt})
		}, fail)
	})
}

type subscribeFunc func(ctx context.Context, push func(LiveMessage), fail func(error)) appointments.Unsubscribe

func (h *LiveHandler) serve(w http.ResponseWriter, r *http.Request, scope string, subscribe subscribeFunc) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "scope", scope, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Only the latest snapshot matters, so a slow socket skips stale ones
	// instead of stalling the subscription goroutine.
	updates := make(chan LiveMessage, 1)
	push := func(msg LiveMessage) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- msg:
		default:
		}
	}
	failures := make(chan error, 1)
	fail := func(err error) {
		select {
		case failures <- err:
		default:
		}
	}

	unsubscribe := subscribe(ctx, push, fail)
	defer unsubscribe()

	go h.readLoop(conn, cancel)

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-updates:
			if err := h.write(conn, msg); err != nil {
				h.logger.Debug("live write failed", "scope", scope, "error", err)
				return
			}
		case err := <-failures:
			h.logger.Warn("live subscription ended", "scope", scope, "error", err)
			_ = h.write(conn, LiveMessage{Type: "error", Error: "live updates are unavailable, reload to retry"})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
				time.Now().Add(liveWriteWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client frames and cancels once the peer goes away.
func (h *LiveHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(liveReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHandler) write(conn *websocket.Conn, msg LiveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}
