package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/xhad/soilreport/internal/types"
	"github.com/xhad/soilreport/pkg/analyzer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// wsClient guards writes; gorilla connections allow one writer at a time.
type wsClient struct {
	conn    *websocket.Conn
	session string
	mu      sync.Mutex
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, cookie := s.session(r)
	header := http.Header{}
	if cookie != nil {
		header.Add("Set-Cookie", cookie.String())
	}

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn, session: id}

	// Requests on one connection run in arrival order so their replies never
	// interleave. The reader keeps going so a disconnect cancels the one in
	// flight.
	ctx, cancel := context.WithCancel(r.Context())
	queue := make(chan Message, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range queue {
			if ctx.Err() != nil {
				continue
			}
			s.handleMessage(ctx, client, msg)
		}
	}()
	defer func() {
		cancel()
		close(queue)
		<-done
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", id).Msg("Error reading message")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(client, "error", "Invalid message.", map[string]string{"kind": string(analyzer.KindInput)})
			continue
		}

		select {
		case queue <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, client *wsClient, msg Message) {
	defer s.sendMessage(client, "done", "", nil)

	var stream types.StreamFunc
	if s.config.Streaming {
		stream = func(chunk string) {
			s.sendMessage(client, "stream", chunk, map[string]string{"type": msg.Type})
		}
	}

	var text string
	var err error
	switch msg.Type {
	case "ask":
		text, err = s.service.Ask(ctx, client.session, msg.Content, stream)
	case "recommend":
		text, err = s.service.Recommend(ctx, client.session, stream)
	default:
		s.sendMessage(client, "error", "Unknown message type: "+msg.Type, map[string]string{"kind": string(analyzer.KindInput)})
		return
	}

	if err != nil {
		s.sendMessage(client, "error", err.Error(), map[string]string{
			"kind": string(analyzer.KindOf(err)),
			"type": msg.Type,
		})
		return
	}

	s.sendMessage(client, "response", text, map[string]string{
		"html": s.renderMarkdown(text),
		"type": msg.Type,
	})
}

func (s *Server) sendMessage(client *wsClient, msgType string, content string, data interface{}) {
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if err := client.conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Str("session", client.session).Msg("Error sending message")
	}
}
