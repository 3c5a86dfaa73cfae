package websocket

import "github.com/google/uuid"

type SocketMessageType int

const (
	Update SocketMessageType = iota
	Welcome
)

// SocketMessage is a single payload pushed to one or all connected clients.
// A nil Target broadcasts the message; otherwise only the client whose id
// matches receives it.
type SocketMessage struct {
	Title  string            `json:"title"`
	Body   map[string]any    `json:"arguments"`
	Type   SocketMessageType `json:"type"`
	Target *uuid.UUID        `json:"-"`
}
