package stub

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const chatWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev stub, any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatHub keeps the per-room membership for the stub chat endpoint.
type ChatHub struct {
	mu    sync.Mutex
	rooms map[string]map[*chatPeer]bool
}

type chatPeer struct {
	conn   *websocket.Conn
	userID string
	room   string
	send   chan string
}

func NewChatHub() *ChatHub {
	return &ChatHub{rooms: make(map[string]map[*chatPeer]bool)}
}

// ServeWS upgrades the connection, performs the USER:<id>:<room>
// registration handshake, greets with a welcome line, and then relays raw
// text frames to the room.
func (h *ChatHub) ServeWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Chat upgrade failed: %v", err)
			return
		}

		peer, err := h.register(conn)
		if err != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
				time.Now().Add(chatWriteWait))
			conn.Close()
			return
		}

		go peer.writePump()
		peer.send <- fmt.Sprintf("Welcome, %s! You joined room %s.", peer.userID, peer.room)
		h.broadcast(peer.room, fmt.Sprintf("%s joined the room", peer.userID), peer)

		h.readPump(peer)
	}
}

// register reads the single identification frame and places the peer in its
// room.
func (h *ChatHub) register(conn *websocket.Conn) (*chatPeer, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading identification: %w", err)
	}

	parts := strings.SplitN(string(data), ":", 3)
	if len(parts) != 3 || parts[0] != "USER" || strings.TrimSpace(parts[1]) == "" {
		return nil, fmt.Errorf("invalid registration frame")
	}

	peer := &chatPeer{
		conn:   conn,
		userID: strings.TrimSpace(parts[1]),
		room:   strings.TrimSpace(parts[2]),
		send:   make(chan string, 16),
	}

	h.mu.Lock()
	if h.rooms[peer.room] == nil {
		h.rooms[peer.room] = make(map[*chatPeer]bool)
	}
	h.rooms[peer.room][peer] = true
	h.mu.Unlock()

	log.Printf("Chat peer %s joined room %q", peer.userID, peer.room)
	return peer, nil
}

func (h *ChatHub) readPump(peer *chatPeer) {
	defer h.unregister(peer)
	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			return
		}
		h.broadcast(peer.room, fmt.Sprintf("%s: %s", peer.userID, string(data)), nil)
	}
}

func (p *chatPeer) writePump() {
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// broadcast sends a line to every peer in the room except skip.
func (h *ChatHub) broadcast(room, text string, skip *chatPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.rooms[room] {
		if peer == skip {
			continue
		}
		select {
		case peer.send <- text:
		default:
			// Slow consumer; the frame is dropped rather than blocking the room.
		}
	}
}

func (h *ChatHub) unregister(peer *chatPeer) {
	h.mu.Lock()
	if peers, ok := h.rooms[peer.room]; ok {
		delete(peers, peer)
		if len(peers) == 0 {
			delete(h.rooms, peer.room)
		}
	}
	h.mu.Unlock()

	close(peer.send)
	peer.conn.Close()
	h.broadcast(peer.room, fmt.Sprintf("%s left the room", peer.userID), nil)
	log.Printf("Chat peer %s left room %q", peer.userID, peer.room)
}
