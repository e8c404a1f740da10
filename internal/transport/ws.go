package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSListener accepts opc.ws:// connections: an OPC UA binding that tunnels
// SecureChannel chunks inside WebSocket binary frames, so a browser-based
// client or anything behind an HTTP-aware load balancer can reach the
// server without a raw TCP binding.
type WSListener struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server
	accepted chan Connection
	limits   Limits
}

// ListenWS starts an HTTP server at addr that upgrades every request on
// path to a WebSocket connection for the opc.ws:// binding.
func ListenWS(addr, path string, limits Limits) (*WSListener, error) {
	l := &WSListener{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		accepted: make(chan Connection, 16),
		limits:   limits,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen ws: %w", err)
	}
	go l.server.Serve(ln)
	return l, nil
}

func (l *WSListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wc := &wsConnection{conn: conn, limits: l.limits}
	select {
	case l.accepted <- wc:
	default:
		conn.Close()
	}
}

func (l *WSListener) Addr() string { return l.addr }

func (l *WSListener) Close() error {
	return l.server.Close()
}

func (l *WSListener) Accept(ctx context.Context) (Connection, error) {
	select {
	case c := <-l.accepted:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type wsConnection struct {
	conn   *websocket.Conn
	limits Limits
}

func (c *wsConnection) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *wsConnection) Read(ctx context.Context) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(d)
	}
	mt, b, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, fmt.Errorf("transport: opc.ws expects binary frames, got message type %d", mt)
	}
	if c.limits.MaxMessageSize > 0 && len(b) > c.limits.MaxMessageSize {
		return nil, fmt.Errorf("transport: message of %d bytes exceeds limit %d", len(b), c.limits.MaxMessageSize)
	}
	return b, nil
}

func (c *wsConnection) Write(ctx context.Context, b []byte) error {
	deadline := time.Now().Add(c.limits.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (c *wsConnection) Close() error {
	return c.conn.Close()
}
