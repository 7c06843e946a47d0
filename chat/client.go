// Package chat is the realtime client: one socket per session, a
// delimiter-based identification handshake, then raw text frames. There is no
// reconnection or heartbeat; a broken connection ends the session.
package chat

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the session machine: disconnected → connecting → identified.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdentified
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdentified:
		return "identified"
	default:
		return "disconnected"
	}
}

// welcomeMarker acknowledges registration: the first inbound frame containing
// it transitions the session to identified.
const welcomeMarker = "Welcome"

const writeWait = 10 * time.Second

var (
	ErrEmptyUserID      = errors.New("user id must not be empty")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotIdentified    = errors.New("not identified yet")
)

// Client owns one websocket session.
type Client struct {
	url    string
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	messages []Message

	subs    map[int]func(Message)
	nextSub int
}

// NewClient builds a client for the given socket URL.
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		subs:   make(map[int]func(Message)),
	}
}

// Subscribe registers fn for every appended log entry and returns its
// unsubscribe function.
func (c *Client) Subscribe(fn func(Message)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the append-only log.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Connect opens the socket and sends the single identification frame
// USER:<id>:<room>. An empty user id fails fast without dialing. Outbound
// chat frames stay rejected until the welcome acknowledgement arrives.
func (c *Client) Connect(userID, room string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrEmptyUserID
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}

	frame := fmt.Sprintf("USER:%s:%s", uid, strings.TrimSpace(room))
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		conn.Close()
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("sending identification: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// readLoop appends every inbound frame to the log and drives the state
// machine off the discrete socket events.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(err)
			return
		}
		c.handleFrame(string(data))
	}
}

func (c *Client) handleFrame(text string) {
	c.mu.Lock()
	kind := KindPeer
	if c.state == StateConnecting && strings.Contains(text, welcomeMarker) {
		c.state = StateIdentified
		kind = KindSystem
	}
	c.appendLocked(newMessage(kind, text))
	c.mu.Unlock()
}

// Send transmits the trimmed text as a single frame. Permitted only once
// identified; ordering relies on the transport.
func (c *Client) Send(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdentified {
		return ErrNotIdentified
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(trimmed)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	c.appendLocked(newMessage(KindOwn, trimmed))
	return nil
}

// Disconnect closes the socket. The read loop observes the close and resets
// the state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// handleClose resets to disconnected and logs the close code and reason,
// whether the close was local or remote.
func (c *Client) handleClose(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return
	}
	c.state = StateDisconnected
	c.conn = nil

	code := websocket.CloseAbnormalClosure
	reason := ""
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
		reason = ce.Text
	}
	log.Printf("Chat connection closed: %d %s", code, reason)
	c.appendLocked(newMessage(KindSystem, fmt.Sprintf("Connection closed: %d %s", code, reason)))
}

func (c *Client) appendLocked(msg Message) {
	c.messages = append(c.messages, msg)
	subs := make([]func(Message), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
	c.mu.Lock()
}
