package hub

import (
	"github.com/google/uuid"

	"sheetsync/internal/presence"
)

const DefaultSendBuffer = 256

// Client is one connection as seen by the hub. The transport drains
// Outbound and forwards inbound frames with Hub.Handle.
type Client struct {
	ID   string
	User presence.User

	send chan []byte

	// owned by the run loop
	room   *Room
	closed bool
}

func NewClient(user presence.User, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:   uuid.NewString(),
		User: user,
		send: make(chan []byte, buffer),
	}
}

// Outbound yields encoded frames for the connection. It is closed when the
// hub drops the client.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// enqueue never blocks; false means the buffer is full.
func (c *Client) enqueue(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
