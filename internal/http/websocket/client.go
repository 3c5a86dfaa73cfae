package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// socketClient wraps a single upgraded connection. Writes are serialised by
// a mutex as gorilla connections permit only one concurrent writer.
type socketClient struct {
	id        *uuid.UUID
	socket    *websocket.Conn
	writeLock sync.Mutex
}

func (client *socketClient) SendMessage(message *SocketMessage) error {
	client.writeLock.Lock()
	defer client.writeLock.Unlock()

	return client.socket.WriteJSON(message)
}

// Read consumes (and discards) inbound frames until the connection errors
// or closes. Selene's activity stream is push-only; reading is still
// required to process control frames and detect disconnects.
func (client *socketClient) Read() error {
	for {
		if _, _, err := client.socket.ReadMessage(); err != nil {
			return err
		}
	}
}

func (client *socketClient) Close() error {
	return client.socket.Close()
}
