package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sheetsync/internal/hub"
	"sheetsync/internal/presence"
	"sheetsync/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512 * 1024
)

// ServeWs upgrades the request and bridges the socket to a hub client until
// either side closes.
func (s *Server) ServeWs(c *gin.Context) {
	id := currentIdentity(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws: upgrade")
		return
	}
	client := hub.NewClient(presence.User{ID: id.UserID, DisplayName: id.DisplayName}, s.cfg.SendBuffer)
	log := s.log.With().Str("client", client.ID).Str("user", id.UserID).Logger()
	log.Info().Msg("ws: connected")

	go writePump(conn, client, log)
	readPump(c.Request.Context(), conn, s.hub, client, log)
}

// readPump forwards frames to the hub. Frames that do not decode are logged
// and skipped.
func readPump(ctx context.Context, conn *websocket.Conn, h *hub.Hub, client *hub.Client, log zerolog.Logger) {
	defer func() {
		h.Disconnect(client)
		conn.Close()
		log.Info().Msg("ws: disconnected")
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("ws: read")
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("ws: malformed frame ignored")
			continue
		}
		if err := h.Handle(ctx, client, msg); err != nil {
			return
		}
	}
}

// writePump drains the client's outbound queue onto the socket and keeps
// the connection alive with pings.
func writePump(conn *websocket.Conn, client *hub.Client, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case data, ok := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Msg("ws: write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
