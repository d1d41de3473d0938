package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{s.Addr(), "localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}

	s.clientsMutex.Lock()
	s.clients[conn] = client
	count := len(s.clients)
	s.clientsMutex.Unlock()
	s.logger.Debug(r.Context(), "Client connected", "clients", count)

	go client.writePump()
	client.readPump()
}

// runWebSocketHub fans broadcast messages out to every client. A client
// whose queue is full is dropped.
func (s *Server) runWebSocketHub(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.clientsMutex.Lock()
			for conn, client := range s.clients {
				select {
				case client.send <- message:
				default:
					s.dropLocked(conn, websocket.StatusPolicyViolation, "client too slow")
				}
			}
			s.clientsMutex.Unlock()
		}
	}
}

// drop unregisters a client and closes its connection. Dropping a client
// twice is a no-op.
func (s *Server) drop(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	s.dropLocked(conn, code, reason)
}

// dropLocked is drop with clientsMutex held.
func (s *Server) dropLocked(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	client, ok := s.clients[conn]
	if !ok {
		return
	}
	delete(s.clients, conn)
	close(client.send)
	go conn.Close(code, reason)
}

// readPump discards incoming messages until the connection fails.
func (c *Client) readPump() {
	defer c.server.drop(c.conn, websocket.StatusNormalClosure, "")

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, _, err := c.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.server.logger.Debug(context.Background(), "WebSocket closed", "error", err.Error())
			}
			return
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.server.drop(c.conn, websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.server.drop(c.conn, websocket.StatusInternalError, "ping failed")
				return
			}
		}
	}
}
