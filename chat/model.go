package chat

import (
	"strconv"
	"time"
)

// Kind classifies a log entry for display.
type Kind string

const (
	KindSystem Kind = "system"
	KindOwn    Kind = "own"
	KindPeer   Kind = "peer"
)

// Message is one entry in the session's append-only log.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(kind Kind, text string) Message {
	now := time.Now()
	return Message{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		Kind:      kind,
		Text:      text,
		Timestamp: now,
	}
}
