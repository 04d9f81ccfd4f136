package hub

import (
	"time"

	"sheetsync/internal/presence"
	"sheetsync/internal/protocol"
	"sheetsync/internal/replica"
)

func (h *Hub) handle(c *Client, msg protocol.Message) {
	if c.closed {
		return
	}
	msg.User = c.User.ID

	if msg.Type == protocol.Join {
		h.join(c, msg)
		return
	}

	room := c.room
	if room == nil || (msg.DocumentID != "" && msg.DocumentID != room.ID) {
		h.reject(c, msg.DocumentID, protocol.CodeNotJoined, "join the document first")
		return
	}
	msg.DocumentID = room.ID

	switch {
	case msg.Type == protocol.Leave:
		h.detach(c, protocol.ReasonLeave)
	case msg.Type == protocol.Heartbeat:
		h.touch(room, c)
	case msg.Type == protocol.RequestSnapshot:
		h.sendSnapshots(room, c)
	case msg.Type == protocol.CursorMove, msg.Type == protocol.SelectionChange,
		msg.Type == protocol.TypingStart, msg.Type == protocol.TypingStop:
		h.presenceEvent(room, c, msg)
	case msg.Type.IsMutation():
		h.mutation(room, c, msg)
	default:
		h.log.Warn().Str("type", string(msg.Type)).Str("client", c.ID).Msg("hub: unknown event ignored")
	}
}

func (h *Hub) join(c *Client, msg protocol.Message) {
	id := msg.DocumentID
	log := h.log.With().Str("document", id).Str("user", c.User.ID).Logger()
	if !ValidDocumentID(id) {
		h.reject(c, id, protocol.CodeBadRequest, "invalid documentId")
		return
	}
	if !h.access.CanRead(h.ctx, c.User.ID, id) {
		log.Info().Msg("hub: join rejected")
		h.reject(c, id, protocol.CodeAccessDenied, ErrAccessDenied.Error())
		return
	}

	if len(msg.Payload) > 0 {
		var p protocol.JoinPayload
		if err := msg.Bind(&p); err != nil {
			log.Warn().Err(err).Msg("hub: bad join payload")
		} else {
			if p.DisplayName != "" {
				c.User.DisplayName = p.DisplayName
			}
			c.User.Avatar = p.Avatar
		}
	}

	if c.room != nil && c.room.ID != id {
		h.detach(c, protocol.ReasonLeave)
	}
	room := c.room
	if room == nil {
		var err error
		room, err = h.open(id)
		if err != nil {
			log.Error().Err(err).Msg("hub: load document")
			h.reject(c, id, protocol.CodeBadRequest, "document unavailable")
			return
		}
		room.clients[c] = true
		c.room = room
		log.Info().Str("client", c.ID).Int("connections", len(room.clients)).Msg("hub: client joined")
	}

	_, present := room.presence.Get(c.User.ID)
	entry := room.presence.Join(c.User)
	if !present {
		h.broadcast(room, c, protocol.UserJoined, protocol.UserJoinedPayload{User: entry})
	}
	h.sendSnapshots(room, c)
}

// open returns the room for id, loading the document on first use.
func (h *Hub) open(id string) (*Room, error) {
	h.mu.RLock()
	room, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return room, nil
	}
	doc, version, err := h.load(h.ctx, id)
	if err != nil {
		return nil, err
	}
	room = newRoom(id, doc, version, presence.NewTracker(presence.WithClock(h.now)))
	h.mu.Lock()
	h.rooms[id] = room
	h.mu.Unlock()
	h.log.Debug().Str("document", id).Int("version", version).Msg("hub: room opened")
	return room, nil
}

// detach removes c from its room. The user's presence goes with their last
// connection and the room goes with its last client.
func (h *Hub) detach(c *Client, reason string) {
	room := c.room
	if room == nil {
		return
	}
	delete(room.clients, c)
	c.room = nil
	h.log.Info().Str("document", room.ID).Str("client", c.ID).Str("reason", reason).Msg("hub: client left")

	if !room.connected(c.User.ID, nil) {
		if _, ok := room.presence.Leave(c.User.ID); ok {
			h.broadcast(room, nil, protocol.UserLeft, protocol.UserLeftPayload{UserID: c.User.ID, Reason: reason})
		}
	}
	if len(room.clients) == 0 {
		h.closeRoom(room)
	}
}

func (h *Hub) closeRoom(room *Room) {
	h.mu.Lock()
	if h.rooms[room.ID] != room {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, room.ID)
	h.mu.Unlock()

	if err := h.save(h.ctx, room); err != nil {
		h.log.Error().Err(err).Str("document", room.ID).Msg("hub: save document")
		return
	}
	h.log.Debug().Str("document", room.ID).Int("version", room.storedVersion).Msg("hub: room closed")
}

func (h *Hub) touch(room *Room, c *Client) {
	if !room.presence.Touch(c.User.ID) {
		h.rejoin(room, c)
	}
}

// rejoin restores the presence of a user that was swept while their
// connection stayed open.
func (h *Hub) rejoin(room *Room, c *Client) {
	entry := room.presence.Join(c.User)
	h.broadcast(room, c, protocol.UserJoined, protocol.UserJoinedPayload{User: entry})
}

func (h *Hub) presenceEvent(room *Room, c *Client, msg protocol.Message) {
	if _, ok := room.presence.Get(c.User.ID); !ok {
		h.rejoin(room, c)
	}

	var err error
	switch msg.Type {
	case protocol.CursorMove:
		var p presence.Cursor
		if err = msg.Bind(&p); err == nil {
			room.presence.UpdateCursor(c.User.ID, p)
		}
	case protocol.SelectionChange:
		var p presence.Selection
		if err = msg.Bind(&p); err == nil {
			room.presence.UpdateSelection(c.User.ID, p)
		}
	case protocol.TypingStart:
		var p protocol.TypingPayload
		if err = msg.Bind(&p); err == nil {
			room.presence.TypingStart(c.User.ID, p.CellID)
		}
	case protocol.TypingStop:
		var p protocol.TypingPayload
		if err = msg.Bind(&p); err == nil {
			room.presence.TypingStop(c.User.ID, p.CellID)
		}
	}
	if err != nil {
		h.log.Warn().Err(err).Str("client", c.ID).Msg("hub: malformed presence event ignored")
		return
	}
	h.relay(room, c, msg)
}

// mutation replays msg on the server copy and relays it unchanged. A payload
// the server copy cannot apply is still relayed.
func (h *Hub) mutation(room *Room, c *Client, msg protocol.Message) {
	if err := replica.Replay(room.doc, msg); err != nil {
		h.log.Warn().Err(err).Str("document", room.ID).Str("client", c.ID).Msg("hub: mutation not applied")
	}
	h.touch(room, c)
	h.relay(room, c, msg)
}

func (h *Hub) sendSnapshots(room *Room, c *Client) {
	h.send(c, room.ID, protocol.PresenceSnapshot, protocol.PresenceSnapshotPayload{Users: room.presence.Snapshot()})

	p := room.doc.Persisted()
	h.send(c, room.ID, protocol.DocumentSnapshot, protocol.DocumentSnapshotPayload{
		Rows:     p.Rows,
		Cols:     p.Cols,
		Version:  p.Version,
		Snapshot: p.Snapshot,
	})
}

func (h *Hub) reject(c *Client, documentID, code, reason string) {
	h.send(c, documentID, protocol.Rejected, protocol.RejectedPayload{Code: code, Reason: reason})
}

func (h *Hub) sweepIdle(timeout time.Duration) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	for _, room := range rooms {
		for _, e := range room.presence.Sweep(timeout) {
			h.log.Info().Str("document", room.ID).Str("user", e.UserID).Msg("hub: idle user evicted")
			h.broadcast(room, nil, protocol.UserLeft, protocol.UserLeftPayload{UserID: e.UserID, Reason: protocol.ReasonIdle})
		}
	}
}
