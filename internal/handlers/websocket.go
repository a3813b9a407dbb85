package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/auth"
	"github.com/ternarybob/skillmatch/internal/common"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser clients connect cross-origin in local development
	},
}

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

// WSMessage is the envelope pushed to websocket clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler keeps authenticated sockets grouped into per-subject
// rooms. Sessions join under the external subject carried by their token,
// which is why the bridge routes by subject and not by internal user id.
type WebSocketHandler struct {
	logger     arbor.ILogger
	mu         sync.RWMutex
	rooms      map[string]map[*websocket.Conn]bool
	connMutex  map[*websocket.Conn]*sync.Mutex
	throttlers map[string]*rate.Limiter
}

// NewWebSocketHandler creates the websocket hub. Throttle intervals are
// per event type and optional; an absent entry means no throttling.
func NewWebSocketHandler(cfg common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:     logger,
		rooms:      make(map[string]map[*websocket.Conn]bool),
		connMutex:  make(map[*websocket.Conn]*sync.Mutex),
		throttlers: make(map[string]*rate.Limiter),
	}

	for eventType, intervalStr := range cfg.ThrottleIntervals {
		duration, err := time.ParseDuration(intervalStr)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("event_type", eventType).
				Str("interval", intervalStr).
				Msg("Failed to parse throttle interval - throttler disabled")
			continue
		}
		h.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
	}

	return h
}

// HandleWebSocket upgrades the connection and parks it in the caller's
// room until it closes. Runs behind the auth middleware, so the subject is
// already resolved.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject := auth.Subject(r.Context())
	if subject == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	room := roomKey(subject)

	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	h.connMutex[conn] = &sync.Mutex{}
	h.mu.Unlock()

	h.logger.Debug().Str("room", room).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.rooms[room], conn)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
		delete(h.connMutex, conn)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Str("room", room).Msg("WebSocket client disconnected")
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go h.keepalive(conn, stop)

	// Clients only listen; the read loop exists to detect disconnects and
	// service pongs
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

func (h *WebSocketHandler) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.mu.RLock()
			mutex := h.connMutex[conn]
			h.mu.RUnlock()
			if mutex == nil {
				return
			}

			mutex.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			mutex.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// EmitToSubject pushes one message to every socket in the subject's room.
// Messages past the per-type throttle are dropped; clients recover state
// from the authoritative row on their next read.
func (h *WebSocketHandler) EmitToSubject(subject, msgType string, payload interface{}) {
	if limiter, ok := h.throttlers[msgType]; ok && !limiter.Allow() {
		return
	}

	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal websocket message")
		return
	}

	room := roomKey(subject)

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	mutexes := make([]*sync.Mutex, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.connMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()
		if err != nil {
			h.logger.Warn().Err(err).Str("room", room).Msg("Failed to push websocket message")
		}
	}
}

// RoomSize reports how many sockets are parked in the subject's room
func (h *WebSocketHandler) RoomSize(subject string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(subject)])
}

func roomKey(subject string) string {
	return "user:" + subject
}
