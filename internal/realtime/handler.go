package realtime

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"vidshare/internal/models"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
)

// VideoAccess resolves a video for a viewer, failing when it does not exist
// or the viewer may not see it.
type VideoAccess interface {
	VideoForViewer(viewerID, id string) (models.Video, error)
}

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	Hub    *Hub
	Videos VideoAccess
	// Viewer extracts the authenticated user id from the upgrade request.
	// Anonymous viewers get an empty id.
	Viewer  func(*http.Request) string
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	// AllowedOrigins lists the origins allowed to connect; "*" allows any.
	// Empty means same-origin only.
	AllowedOrigins    []string
	SendBuffer        int
	WriteTimeout      time.Duration
	PongWait          time.Duration
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
}

// Handler upgrades requests and speaks the join/leave/ping protocol.
type Handler struct {
	cfg      HandlerConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 5
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = 10
	}
	h := &Handler{
		cfg:     cfg,
		logger:  logging.WithComponent(logger, "realtime"),
		metrics: recorder,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.cfg.AllowedOrigins) == 0 {
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
	return slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewerID := ""
	if h.cfg.Viewer != nil {
		viewerID = h.cfg.Viewer(r)
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn := newWSConn(ws, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.cfg.PongWait)
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	go conn.writePump()
	h.readLoop(conn, viewerID)
	h.cfg.Hub.Leave(conn)
	_ = conn.Close()
}

func (h *Handler) readLoop(conn *wsConn, viewerID string) {
	ws := conn.ws
	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(conn.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(conn.pongWait))
	})
	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.MessageBurst)

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Warn("websocket closed unexpectedly", "conn", conn.ID(), "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(conn.pongWait))
		if !limiter.Allow() {
			h.reply(conn, frame{Type: frameError, Error: "rate limited"})
			continue
		}
		var msg frame
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.reply(conn, frame{Type: frameError, Error: "invalid payload"})
			continue
		}
		switch msg.Type {
		case frameJoin:
			h.handleJoin(conn, viewerID, strings.TrimSpace(msg.VideoID))
		case frameLeave:
			room, _ := h.cfg.Hub.Leave(conn)
			h.reply(conn, frame{Type: frameAck, VideoID: room})
		case framePing:
			h.reply(conn, frame{Type: framePong})
		default:
			h.reply(conn, frame{Type: frameError, Error: "unknown command"})
		}
	}
}

func (h *Handler) handleJoin(conn *wsConn, viewerID, videoID string) {
	if videoID == "" {
		h.reply(conn, frame{Type: frameError, Error: "videoId required"})
		return
	}
	if h.cfg.Videos != nil {
		if _, err := h.cfg.Videos.VideoForViewer(viewerID, videoID); err != nil {
			h.reply(conn, frame{Type: frameError, VideoID: videoID, Error: "video not found"})
			return
		}
	}
	h.cfg.Hub.Join(conn, videoID)
	h.reply(conn, frame{Type: frameAck, VideoID: videoID})
}

func (h *Handler) reply(conn *wsConn, msg frame) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}
