package chat

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// scriptedServer records inbound frames and lets the test decide when to
// greet the client.
type scriptedServer struct {
	srv     *httptest.Server
	dials   int32
	frames  chan string
	conns   chan *websocket.Conn
}

func newScriptedServer(t *testing.T) *scriptedServer {
	t.Helper()
	s := &scriptedServer{
		frames: make(chan string, 16),
		conns:  make(chan *websocket.Conn, 4),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.dials, 1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		s.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.frames <- string(data)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *scriptedServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *scriptedServer) nextFrame(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-s.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return ""
	}
}

func (s *scriptedServer) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectRejectsEmptyUserIDWithoutDialing(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	for _, userID := range []string{"", "   "} {
		if err := c.Connect(userID, "lobby"); !errors.Is(err, ErrEmptyUserID) {
			t.Fatalf("expected ErrEmptyUserID for %q, got %v", userID, err)
		}
	}
	if atomic.LoadInt32(&server.dials) != 0 {
		t.Fatal("empty user id must not open a connection")
	}
}

func TestConnectSendsSingleIdentificationFrame(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	if frame := server.nextFrame(t); frame != "USER:alice:lobby" {
		t.Fatalf("expected identification frame USER:alice:lobby, got %q", frame)
	}
	select {
	case frame := <-server.frames:
		t.Fatalf("unexpected extra frame %q", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendRejectedUntilWelcomeMarker(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()
	server.nextFrame(t) // identification
	conn := server.conn(t)

	if err := c.Send("too early"); !errors.Is(err, ErrNotIdentified) {
		t.Fatalf("expected ErrNotIdentified before welcome, got %v", err)
	}

	// A frame without the marker must not identify the session.
	conn.WriteMessage(websocket.TextMessage, []byte("bob joined the room"))
	waitFor(t, "presence entry", func() bool { return len(c.Messages()) == 1 })
	if c.State() != StateConnecting {
		t.Fatalf("expected still connecting, got %v", c.State())
	}

	conn.WriteMessage(websocket.TextMessage, []byte("Welcome, alice! You joined room lobby."))
	waitFor(t, "identification", func() bool { return c.State() == StateIdentified })

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send after welcome failed: %v", err)
	}
	if frame := server.nextFrame(t); frame != "hello" {
		t.Fatalf("expected raw text frame, got %q", frame)
	}
}

func TestEveryInboundFrameIsLogged(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()
	server.nextFrame(t)
	conn := server.conn(t)

	conn.WriteMessage(websocket.TextMessage, []byte("Welcome, alice!"))
	conn.WriteMessage(websocket.TextMessage, []byte("bob: hi"))
	waitFor(t, "two log entries", func() bool { return len(c.Messages()) == 2 })

	msgs := c.Messages()
	if msgs[0].Kind != KindSystem {
		t.Fatalf("welcome should be a system entry, got %v", msgs[0].Kind)
	}
	if msgs[1].Kind != KindPeer || msgs[1].Text != "bob: hi" {
		t.Fatalf("unexpected peer entry: %+v", msgs[1])
	}
}

func TestRemoteCloseResetsStateAndLogsCodeReason(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	server.nextFrame(t)
	conn := server.conn(t)

	conn.WriteMessage(websocket.TextMessage, []byte("Welcome, alice!"))
	waitFor(t, "identification", func() bool { return c.State() == StateIdentified })

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server restart"),
		time.Now().Add(time.Second))
	conn.Close()

	waitFor(t, "disconnect", func() bool { return c.State() == StateDisconnected })

	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	if last.Kind != KindSystem {
		t.Fatalf("close entry must be a system entry, got %v", last.Kind)
	}
	if !strings.Contains(last.Text, "1001") || !strings.Contains(last.Text, "server restart") {
		t.Fatalf("close entry must carry code and reason, got %q", last.Text)
	}

	if err := c.Send("after close"); !errors.Is(err, ErrNotIdentified) {
		t.Fatalf("send after close must be rejected, got %v", err)
	}
}

func TestLocalDisconnectResetsState(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	server.nextFrame(t)
	conn := server.conn(t)
	conn.WriteMessage(websocket.TextMessage, []byte("Welcome, alice!"))
	waitFor(t, "identification", func() bool { return c.State() == StateIdentified })

	c.Disconnect()
	waitFor(t, "disconnect", func() bool { return c.State() == StateDisconnected })

	// A fresh manual connect is required and possible after a disconnect.
	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	c.Disconnect()
}

func TestConnectWhileConnectedRejected(t *testing.T) {
	server := newScriptedServer(t)
	c := NewClient(server.url())

	if err := c.Connect("alice", "lobby"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect("alice", "lobby"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}
