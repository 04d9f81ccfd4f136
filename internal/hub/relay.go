package hub

import (
	"sheetsync/internal/protocol"
)

// relay forwards msg unchanged to every connection in the room except the
// sender.
func (h *Hub) relay(room *Room, sender *Client, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(msg.Type)).Msg("hub: encode relay")
		return
	}
	h.fanOut(room, sender, data)
}

// broadcast sends a server event to the room, skipping except when set.
func (h *Hub) broadcast(room *Room, except *Client, t protocol.Type, payload any) {
	msg, err := protocol.New(t, room.ID, payload)
	if err != nil {
		h.log.Error().Err(err).Msg("hub: build event")
		return
	}
	msg.User = "system"
	h.relay(room, except, msg)
}

// send delivers a server event to one client.
func (h *Hub) send(c *Client, documentID string, t protocol.Type, payload any) {
	msg, err := protocol.New(t, documentID, payload)
	if err != nil {
		h.log.Error().Err(err).Msg("hub: build event")
		return
	}
	msg.User = "system"
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("hub: encode event")
		return
	}
	if !c.enqueue(data) {
		h.drop(c)
	}
}

func (h *Hub) fanOut(room *Room, except *Client, data []byte) {
	var slow []*Client
	for c := range room.clients {
		if c == except {
			continue
		}
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.drop(c)
	}
}

// drop disconnects a client whose send buffer is full.
func (h *Hub) drop(c *Client) {
	if c.closed {
		return
	}
	h.log.Warn().Str("client", c.ID).Str("user", c.User.ID).Msg("hub: slow client dropped")
	c.close()
	h.detach(c, protocol.ReasonDisconnect)
}
