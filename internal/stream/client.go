package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	filter map[string]struct{} // empty = everything
}

func (c *client) setFilter(insts []string) {
	f := make(map[string]struct{}, len(insts))
	for _, inst := range insts {
		f[inst] = struct{}{}
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

func (c *client) wants(inst string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filter) == 0 {
		return true
	}
	_, ok := c.filter[inst]
	return ok
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientMessage is what browsers may send: a subscription change or an
// application-level ping.
type clientMessage struct {
	Type    string   `json:"type"`
	InstIDs []string `json:"instIds"`
	Ping    int64    `json:"ping"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		switch msg.Type {
		case "SUBSCRIBE":
			c.setFilter(normalizeInsts(msg.InstIDs))
		default:
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]any{
					"type":     "pong",
					"ping":     msg.Ping,
					"serverTs": time.Now().UnixMilli(),
				})
				c.trySend(pong)
			}
		}
	}
}

// trySend queues msg unless the client is gone or its buffer is full.
func (c *client) trySend(msg []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
