// Package gateway is the transport boundary of the game: it upgrades
// websocket connections, validates inbound events, forwards them to the
// owning room, and fans the resulting broadcast plans back out to room
// members. All game-state decisions live in the room package; the gateway
// only tracks which connection is bound to which room and player.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scrawl-game/scrawl/internal/game/room"
)

// Gateway accepts websocket sessions and routes their events to rooms.
type Gateway struct {
	registry *room.Registry
	logger   *zap.Logger
	bufSize  int
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[string]*client // roomID → connID → client
}

// New creates a Gateway backed by the given room registry.
//
// Precondition: registry and logger must be non-nil; bufSize must be >= 1.
func New(registry *room.Registry, logger *zap.Logger, bufSize int) *Gateway {
	return &Gateway{
		registry: registry,
		logger:   logger,
		bufSize:  bufSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[string]*client),
	}
}

// HandleWS upgrades the request to a websocket session and serves it
// until the connection drops.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), conn, g.bufSize)
	g.logger.Info("connection opened",
		zap.String("conn_id", c.id),
		zap.String("remote", r.RemoteAddr),
	)

	go c.writePump()
	g.serve(c)
}

// serve runs the read loop for one connection and cleans up on exit.
func (g *Gateway) serve(c *client) {
	defer g.disconnect(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			g.logger.Debug("read loop ended",
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			g.logger.Debug("malformed event dropped",
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			continue
		}

		g.dispatch(c, evt)
	}
}

// dispatch routes one inbound event. Events from a connection that has
// not joined a room are ignored; there is no error channel back to the
// sender for protocol misuse.
func (g *Gateway) dispatch(c *client, evt Event) {
	if evt.Type == EventJoin {
		g.handleJoin(c, evt.Data)
		return
	}

	if c.roomID == "" {
		g.logger.Debug("event before join ignored",
			zap.String("conn_id", c.id),
			zap.String("type", evt.Type),
		)
		return
	}

	rm := g.registry.Get(c.roomID)
	if rm == nil {
		return
	}

	switch evt.Type {
	case EventStroke:
		g.deliver(c.roomID, rm.RelayStroke(c.id, evt.Data))
	case EventChat:
		var p ChatPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return
		}
		g.deliver(c.roomID, rm.RelayChat(c.id, p.Text))
	case EventGuess:
		var p GuessPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return
		}
		g.deliver(c.roomID, rm.Guess(c.id, c.playerID, p.Text))
	default:
		g.logger.Debug("unknown event type",
			zap.String("conn_id", c.id),
			zap.String("type", evt.Type),
		)
	}
}

// handleJoin binds the connection to a room and delivers the join plan.
// A connection that is already bound cannot join again.
func (g *Gateway) handleJoin(c *client, data json.RawMessage) {
	if c.roomID != "" {
		g.logger.Debug("join from bound connection ignored",
			zap.String("conn_id", c.id),
			zap.String("room_id", c.roomID),
		)
		return
	}

	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.PlayerID == "" {
		g.logger.Debug("invalid join payload ignored", zap.String("conn_id", c.id))
		return
	}

	c.roomID = p.RoomID
	c.playerID = p.PlayerID
	c.label = p.Email

	g.mu.Lock()
	if g.rooms[p.RoomID] == nil {
		g.rooms[p.RoomID] = make(map[string]*client)
	}
	g.rooms[p.RoomID][c.id] = c
	g.mu.Unlock()

	g.logger.Info("player joined room",
		zap.String("conn_id", c.id),
		zap.String("room_id", p.RoomID),
		zap.String("player_id", p.PlayerID),
		zap.String("label", p.Email),
	)

	// Registry.Join registers the membership atomically, so a concurrent
	// disconnect's Remove cannot strand this room outside the registry.
	g.deliver(p.RoomID, g.registry.Join(p.RoomID, c.id, p.PlayerID, p.Email))
}

// disconnect tears down a connection: unregisters it, applies the room
// leave transition, and deregisters the room if it emptied.
func (g *Gateway) disconnect(c *client) {
	defer c.close()

	if c.roomID == "" {
		g.logger.Info("connection closed", zap.String("conn_id", c.id))
		return
	}

	g.mu.Lock()
	if conns, ok := g.rooms[c.roomID]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(g.rooms, c.roomID)
		}
	}
	g.mu.Unlock()

	rm := g.registry.Get(c.roomID)
	if rm == nil {
		return
	}

	plan, empty := rm.Leave(c.id, c.playerID)
	g.deliver(c.roomID, plan)
	if empty {
		g.registry.Remove(c.roomID)
		g.logger.Info("room emptied",
			zap.String("room_id", c.roomID),
		)
	}

	g.logger.Info("connection closed",
		zap.String("conn_id", c.id),
		zap.String("room_id", c.roomID),
		zap.String("player_id", c.playerID),
	)
}

// deliver executes a broadcast plan against the connections currently
// bound to the room. Delivery happens outside any room lock; a full or
// closed client just logs, the read loop handles its teardown.
func (g *Gateway) deliver(roomID string, plan room.Plan) {
	if len(plan) == 0 {
		return
	}

	for _, a := range plan {
		for _, c := range g.recipients(roomID, a) {
			if err := c.push(a.Msg); err != nil {
				g.logger.Warn("push to connection failed",
					zap.String("conn_id", c.id),
					zap.String("type", a.Msg.Type),
					zap.Error(err),
				)
			}
		}
	}
}

// recipients resolves one addressed message to concrete clients.
func (g *Gateway) recipients(roomID string, a room.Addressed) []*client {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conns := g.rooms[roomID]
	out := make([]*client, 0, len(conns))
	for _, c := range conns {
		switch a.Audience {
		case room.ToRoom:
			out = append(out, c)
		case room.ToRoomExcept:
			if c.id != a.ConnID {
				out = append(out, c)
			}
		case room.ToConn:
			if c.id == a.ConnID {
				out = append(out, c)
			}
		case room.ToPlayer:
			if c.playerID == a.PlayerID {
				out = append(out, c)
			}
		}
	}
	return out
}

// ConnCount returns the number of live connections bound to rooms.
func (g *Gateway) ConnCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, conns := range g.rooms {
		n += len(conns)
	}
	return n
}

// Shutdown closes every live connection. Read loops observe the close and
// run their normal leave path.
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	var all []*client
	for _, conns := range g.rooms {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range all {
		_ = c.conn.Close()
	}
}
