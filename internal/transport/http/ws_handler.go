package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/proto"
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("outbound queue full")
)

// outboundQueueSize bounds per-connection buffering before a peer is treated
// as stalled and dropped.
const outboundQueueSize = 64

// wsClient adapts one WebSocket connection to core.Conn. Payloads are queued
// to a single writer goroutine, which preserves per-connection delivery order.
type wsClient struct {
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newWSClient() *wsClient {
	return &wsClient{
		out:    make(chan []byte, outboundQueueSize),
		closed: make(chan struct{}),
	}
}

// Send enqueues a payload for the writer goroutine. A full queue means the
// peer stopped draining; report failure so the registry drops the connection
// instead of blocking the broadcast.
func (c *wsClient) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	select {
	case c.out <- payload:
		return nil
	case <-c.closed:
		return errConnClosed
	default:
		return errSlowConsumer
	}
}

func (c *wsClient) markClosed() {
	c.once.Do(func() { close(c.closed) })
}

// WSHandler upgrades HTTP connections and bridges them to the presence core.
type WSHandler struct {
	reg             *core.Registry
	bc              *core.Broadcaster
	router          *core.Router
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(reg *core.Registry, bc *core.Broadcaster, router *core.Router, maxMessageBytes int64, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		reg:             reg,
		bc:              bc,
		router:          router,
		maxMessageBytes: maxMessageBytes,
		log:             logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := newWSClient()
	connID := h.reg.Register(client)
	defer func() {
		client.markClosed()
		h.bc.Disconnect(connID)
	}()

	// The credential is verified exactly once, before any frame is processed.
	// A failed bind leaves the connection open as anonymous, receive-only.
	if ident := h.reg.Bind(ctx, connID, r.URL.Query().Get("token")); ident != nil {
		h.bc.BroadcastEvent(proto.EventUserJoined, proto.UserJoinedData{
			Nickname: ident.Nickname,
			Avatar:   ident.Avatar,
			AgeGroup: ident.AgeGroup,
			Roles:    ident.Roles,
		}, ident.ID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, connID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("conn_id", connID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID int64) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.router.HandleInbound(connID, inbound)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	defer client.markClosed()

	for {
		select {
		case payload := <-client.out:
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
