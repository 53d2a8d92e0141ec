package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/playback"
	"github.com/gwlsn/hawkeye/internal/scene"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Frames buffered per connection before ticks are dropped.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Replay message types
const (
	MsgTypeUpdate = "update"
	MsgTypeError  = "error"
)

// ReplayMessage is pushed to replay clients
type ReplayMessage struct {
	Type  string          `json:"type"`
	State *playback.State `json:"state,omitempty"`
	Frame *scene.Frame    `json:"frame,omitempty"`
	Error string          `json:"error,omitempty"`
}

// replayClient is one replay connection
type replayClient struct {
	conn *websocket.Conn
	ctx  context.Context

	// Buffered channel of outbound messages.
	send chan ReplayMessage
}

// Replay handles GET /api/sessions/{id}/replay. The client sends playback
// commands and receives a frame after each state change and on every tick.
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	a, err := s.Analysis()
	if err != nil {
		writeErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		logger.Debug("Replay upgrade failed", "session_id", s.ID(), "error", err)
		return
	}

	h.cfgMu.RLock()
	opts := playback.Options{
		Increment:    h.cfg.PlaybackIncrement,
		Interval:     h.cfg.PlaybackInterval(),
		BounceHeight: h.cfg.BounceHeight,
	}
	h.cfgMu.RUnlock()

	ctx, cancel := context.WithCancel(h.ctx)
	c := &replayClient{
		conn: conn,
		ctx:  ctx,
		send: make(chan ReplayMessage, sendBuffer),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// A dead writer releases anyone waiting in sendJSON
		defer cancel()
		c.writePump(ctx)
	}()

	logger.Debug("Replay opened", "session_id", s.ID(), "samples", len(a.Trajectory))

	ctrl := playback.NewController(ctx, a.Trajectory, opts, c.push)
	c.readPump(ctrl)

	ctrl.Close()
	cancel()
	<-done

	logger.Debug("Replay closed", "session_id", s.ID())
}

// push is the controller sink. Ticks are dropped rather than blocking the
// ticker when the client falls behind. Every other update waits for room.
func (c *replayClient) push(u playback.Update) {
	st, f := u.State, u.Frame
	msg := ReplayMessage{Type: MsgTypeUpdate, State: &st, Frame: &f}
	if u.Tick {
		select {
		case c.send <- msg:
		default:
		}
		return
	}
	c.sendJSON(msg)
}

// sendJSON queues msg, giving up when the connection is closing or the
// writer has been stuck for writeWait.
func (c *replayClient) sendJSON(msg ReplayMessage) {
	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	case <-timer.C:
		logger.Debug("Replay client too slow, update dropped")
	}
}

// readPump applies commands from the connection until it closes.
func (c *replayClient) readPump(ctrl *playback.Controller) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var cmd playback.Command
		err := c.conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Debug("Replay read failed", "error", err)
			}
			return
		}

		if err := ctrl.Apply(cmd); err != nil {
			if errors.Is(err, playback.ErrControllerClosed) {
				return
			}
			c.sendJSON(ReplayMessage{Type: MsgTypeError, Error: err.Error()})
		}
	}
}

// writePump pumps queued messages to the connection until ctx is done.
func (c *replayClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
