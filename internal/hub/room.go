package hub

import (
	"sheetsync/internal/grid"
	"sheetsync/internal/presence"
)

// Room is the set of connections viewing one document. It exists from the
// first join until the last connection leaves.
type Room struct {
	ID       string
	doc      *grid.Document
	presence *presence.Tracker
	clients  map[*Client]bool

	// version of the blob the document was loaded from
	storedVersion int
}

func newRoom(id string, doc *grid.Document, storedVersion int, tracker *presence.Tracker) *Room {
	return &Room{
		ID:            id,
		doc:           doc,
		presence:      tracker,
		clients:       make(map[*Client]bool),
		storedVersion: storedVersion,
	}
}

// connected reports whether userID still has a connection in the room
// other than except.
func (r *Room) connected(userID string, except *Client) bool {
	for c := range r.clients {
		if c != except && c.User.ID == userID {
			return true
		}
	}
	return false
}
