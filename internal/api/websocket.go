package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// eventHub fans out pipeline events (invoices ingested, audits completed,
// reminders raised) to every connected /api/events/ws client. It never
// blocks a writer on a slow reader: a client whose send buffer is full is
// dropped rather than stalling the broadcast loop.
type eventHub struct {
	mu         sync.Mutex
	clients    map[*eventClient]bool
	broadcast  chan []byte
	register   chan *eventClient
	unregister chan *eventClient
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

var hub = &eventHub{
	clients:    make(map[*eventClient]bool),
	broadcast:  make(chan []byte, 64),
	register:   make(chan *eventClient),
	unregister: make(chan *eventClient),
}

func (h *eventHub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func init() {
	go hub.run()
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// pipelineEvent is the wire shape pushed to /api/events/ws subscribers.
type pipelineEvent struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func broadcastEvent(eventType string, payload any) {
	msg := pipelineEvent{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case hub.broadcast <- data:
	default:
		log.Println("event hub: broadcast buffer full, dropping event")
	}
}

func (s *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("events websocket upgrade error:", err)
		return
	}

	client := &eventClient{conn: conn, send: make(chan []byte, 64)}
	hub.register <- client

	go func() {
		defer func() {
			hub.unregister <- client
			conn.Close()
		}()
		for msg := range client.send {
			w, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			w.Close()
		}
		conn.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
