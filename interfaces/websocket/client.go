package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"learnmap-backend/application/diagram"
)

// Timeouts follow the Gorilla chat example.
const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings go out. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound messages; clients only send small
	// control frames.
	maxMessageSize = 4096

	// sendBufferSize is the outbound queue per client. A client that cannot
	// drain it is dropped rather than allowed to stall the session.
	sendBufferSize = 32
)

const (
	msgTypeRender    = "render"
	msgTypeCamera    = "camera"
	msgTypeError     = "error"
	msgTypeMeasure   = "measure"
	msgTypeNodeClick = "node_click"
	msgTypeRefresh   = "refresh"
	msgTypeReveal    = "reveal_all"
	msgTypePing      = "ping"
)

// renderMessage carries a full snapshot of the rendered diagram.
type renderMessage struct {
	Type  string             `json:"type"`
	Nodes []diagram.NodeView `json:"nodes"`
	Edges []diagram.EdgeView `json:"edges"`
}

// cameraMessage tells clients to center the viewport on a node.
type cameraMessage struct {
	Type   string `json:"type"`
	NodeID string `json:"nodeId"`
}

// errorMessage reports a failed client request.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// clientMessage is the envelope for everything a client sends.
type clientMessage struct {
	Type   string  `json:"type"`
	NodeID string  `json:"nodeId,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Client is one WebSocket connection viewing a map session.
type Client struct {
	hub     *Hub
	session *MapSession
	conn    *websocket.Conn
	userID  string
	send    chan interface{}

	closeOnce sync.Once
	logger    *zap.Logger
}

// trySend puts a message on the client's outbound queue without blocking.
// A false return means the client has stopped draining; the session drops
// it rather than stall the broadcast.
func (c *Client) trySend(msg interface{}) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump reads control messages from the peer until the connection dies.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("malformed client message", zap.Error(err))
			continue
		}
		c.routeMessage(&msg)
	}
}

// routeMessage dispatches one inbound control message.
func (c *Client) routeMessage(msg *clientMessage) {
	switch msg.Type {
	case msgTypeMeasure:
		if msg.NodeID == "" || msg.Height <= 0 {
			return
		}
		c.session.SetMeasuredHeight(msg.NodeID, msg.Height)
	case msgTypeNodeClick:
		if msg.NodeID == "" {
			return
		}
		c.session.NodeClicked(c.userID, msg.NodeID)
	case msgTypeRefresh:
		if err := c.hub.refresh(c.session); err != nil {
			c.logger.Warn("refresh failed", zap.Error(err))
			c.trySend(errorMessage{Type: msgTypeError, Message: "refresh failed"})
		}
	case msgTypeReveal:
		c.session.RevealAll()
	case msgTypePing:
		// Deadline handled by the pong handler.
	default:
		c.logger.Debug("unknown client message type", zap.String("type", msg.Type))
	}
}

// writePump serializes outbound messages and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
