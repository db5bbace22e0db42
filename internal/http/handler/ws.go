package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"retroboard/internal/auth"
	"retroboard/internal/realtime"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

var (
	errPeerClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

type WSHandler struct {
	Server         *realtime.Server
	AllowedOrigins []string
	SendBuffer     int
	PingInterval   time.Duration
	Logger         *log.Logger

	once     sync.Once
	upgrader websocket.Upgrader
}

func (h *WSHandler) init() {
	h.once.Do(func() {
		if h.SendBuffer <= 0 {
			h.SendBuffer = 64
		}
		if h.PingInterval <= 0 {
			h.PingInterval = 15 * time.Second
		}
		if h.Logger == nil {
			h.Logger = log.Default()
		}
		h.Logger = h.Logger.With("component", "ws")
		h.upgrader = websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     h.checkOrigin,
		}
	})
}

// checkOrigin allows any origin when no allow-list is configured.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and runs the connection until either side
// goes away. Frames of one connection are handled in arrival order.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init()
	id, _ := auth.IdentityFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("upgrade failed", "err", err)
		return
	}

	p := &wsPeer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan realtime.Frame, h.SendBuffer),
		done: make(chan struct{}),
	}
	logger := h.Logger.With("conn", p.id, "email", id.Email)
	logger.Debug("websocket opened")

	h.Server.Connect(p, id.Email)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writeLoop(h.PingInterval)
	}()

	// In-flight persistence finishes even if the client drops mid-event.
	ctx := context.WithoutCancel(r.Context())
	h.readLoop(ctx, p, logger)

	p.close()
	<-writerDone
	_ = conn.Close()
	h.Server.Disconnect(p.id)
	logger.Debug("websocket closed")
}

func (h *WSHandler) readLoop(ctx context.Context, p *wsPeer, logger *log.Logger) {
	p.conn.SetReadLimit(maxFrameSize)
	deadline := 2 * h.PingInterval
	_ = p.conn.SetReadDeadline(time.Now().Add(deadline))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read failed", "err", err)
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(deadline))

		var f realtime.Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
			h.Server.ReportBadFrame(p.id)
			continue
		}
		h.Server.Handle(ctx, p.id, f)

		select {
		case <-p.done:
			return
		default:
		}
	}
}

// wsPeer is one websocket connection. Send only enqueues; writeLoop owns
// every write on the socket.
type wsPeer struct {
	id   string
	conn *websocket.Conn
	send chan realtime.Frame

	closeOnce sync.Once
	done      chan struct{}
}

func (p *wsPeer) ID() string { return p.id }

// Send drops the connection instead of blocking when its buffer is full.
func (p *wsPeer) Send(f realtime.Frame) error {
	select {
	case <-p.done:
		return errPeerClosed
	default:
	}
	select {
	case p.send <- f:
		return nil
	case <-p.done:
		return errPeerClosed
	default:
		p.close()
		return errSlowConsumer
	}
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *wsPeer) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	// Unblocks the reader when the writer gives up first.
	defer p.conn.Close()

	for {
		select {
		case f := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(f); err != nil {
				p.close()
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.close()
				return
			}
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
