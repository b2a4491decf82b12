package playerlink

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"multiview-sync/internal/platform/metrics"
	"multiview-sync/internal/syncengine"
)

const (
	writeWait         = 5 * time.Second
	pongWait          = 30 * time.Second
	pingPeriod        = pongWait * 9 / 10
	maxMessageSize    = 4096
	outboundQueueSize = 32
)

// VisibilitySink receives visibility reports from player windows.
type VisibilitySink interface {
	SetVisible(visible bool)
}

// Hub accepts player connections and attaches each connected player to the
// registry once it has reported its first state.
type Hub struct {
	registry   *syncengine.Registry
	visibility VisibilitySink
	log        *slog.Logger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
}

// NewHub returns a Hub. visibility, log and m may be nil.
func NewHub(registry *syncengine.Registry, visibility VisibilitySink, log *slog.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		registry:   registry,
		visibility: visibility,
		log:        log,
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Player windows are served from the viewer's own origin or a local file.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWindow upgrades the request and serves the player of window until the
// connection closes.
func (h *Hub) ServeWindow(w http.ResponseWriter, r *http.Request, window syncengine.WindowID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.log.Debug("player upgrade failed", slog.String("window_id", string(window)), slog.String("error", err.Error()))
		return
	}
	h.Serve(conn, window)
}

// Serve runs a player session on an established connection. It returns after
// the connection is closed and the player has been detached.
func (h *Hub) Serve(conn *websocket.Conn, window syncengine.WindowID) {
	p := newPlayer(window, outboundQueueSize, h.metrics)
	log := h.log.With(slog.String("window_id", string(window)), slog.String("session", p.Session()))
	log.Info("player connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(conn, p, log)
	}()

	h.readLoop(conn, p, log)

	h.registry.Detach(window, p)
	p.shutdown()
	<-done
	conn.Close()
	log.Info("player disconnected")
}

func (h *Hub) readLoop(conn *websocket.Conn, p *Player, log *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	attached := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("player connection lost", slog.String("error", err.Error()))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("invalid player message", slog.String("error", err.Error()))
			continue
		}

		switch msg.Type {
		case MsgState:
			p.apply(msg)
			if !attached {
				h.registry.Attach(p.Window(), p)
				attached = true
				log.Info("player ready", slog.Any("connected_windows", h.registry.WindowIDs()))
			}
		case MsgEvent:
			p.apply(msg)
			switch ev := syncengine.PlayerEvent(msg.Event); ev {
			case syncengine.EventSeek, syncengine.EventTimeShift:
				p.emit(ev)
			case syncengine.EventDestroy:
				log.Info("player destroyed by window")
				return
			default:
				log.Debug("unknown player event", slog.String("event", msg.Event))
			}
		case MsgVisibility:
			if msg.Visible != nil && h.visibility != nil {
				h.visibility.SetVisible(*msg.Visible)
			}
		default:
			log.Debug("unknown player message type", slog.String("type", msg.Type))
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, p *Player, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case cmd, ok := <-p.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(cmd); err != nil {
				log.Debug("player write failed", slog.String("error", err.Error()))
				// Unblock the reader so the session ends.
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}
