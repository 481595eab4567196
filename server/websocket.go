package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope exchanged over /ws. Clients send type "chat";
// the server replies with "stream" fragments (when streaming), then one
// "response" or "error".
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msgType, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	// In-flight answers are abandoned once the client goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send("error", "invalid message")
			continue
		}
		if msg.Type != "chat" {
			c.send("error", "unsupported message type: "+msg.Type)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, c *wsConn, msg Message) {
	var (
		answer string
		err    error
	)
	if s.config.Streaming {
		answer, err = s.service.ChatStream(ctx, msg.SessionID, msg.Content, func(chunk string) error {
			c.send("stream", chunk)
			return nil
		})
	} else {
		answer, err = s.service.Chat(ctx, msg.SessionID, msg.Content)
	}

	if err != nil {
		c.send("error", err.Error())
		return
	}
	c.send("response", answer)
}
