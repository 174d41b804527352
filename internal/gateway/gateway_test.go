package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrawl-game/scrawl/internal/game/room"
	"github.com/scrawl-game/scrawl/internal/game/words"
)

// fakeConn scripts a websocket connection: frames queued with queue are
// returned by ReadMessage, and everything written is recorded.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written []room.Message
	failWr  bool
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (f *fakeConn) queue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.inbound <- data
}

func (f *fakeConn) queueRaw(data string) {
	f.inbound <- []byte(data)
}

// hangUp ends the read loop, as if the peer disconnected.
func (f *fakeConn) hangUp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWr {
		return errors.New("write failed")
	}
	f.written = append(f.written, v.(room.Message))
	return nil
}

func (f *fakeConn) Close() error {
	f.hangUp()
	return nil
}

func (f *fakeConn) failWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWr = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) messages() []room.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]room.Message, len(f.written))
	copy(out, f.written)
	return out
}

func (f *fakeConn) count(msgType string) int {
	n := 0
	for _, m := range f.messages() {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(msgType string) (room.Message, bool) {
	msgs := f.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i], true
		}
	}
	return room.Message{}, false
}

func newTestGateway(t *testing.T, wordList ...string) *Gateway {
	t.Helper()
	if len(wordList) == 0 {
		wordList = []string{"apple"}
	}
	bank, err := words.New(wordList)
	require.NoError(t, err)
	return New(room.NewRegistry(bank, 5), zap.NewNop(), 32)
}

// session drives one connection through the gateway's read loop.
type session struct {
	conn *fakeConn
	done chan struct{}
}

func startSession(g *Gateway, connID string) *session {
	fc := newFakeConn()
	c := newClient(connID, fc, 32)
	done := make(chan struct{})
	go c.writePump()
	go func() {
		g.serve(c)
		c.close()
		close(done)
	}()
	return &session{conn: fc, done: done}
}

func (s *session) join(roomID, playerID, email string) {
	s.conn.queue(Event{Type: EventJoin, Data: mustRaw(JoinPayload{
		RoomID: roomID, PlayerID: playerID, Email: email,
	})})
}

func (s *session) end(t *testing.T) {
	t.Helper()
	s.conn.hangUp()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msg)
}

func TestGateway_JoinDeliversInitialState(t *testing.T) {
	g := newTestGateway(t)
	s := startSession(g, "c1")
	defer s.end(t)

	s.join("r1", "alice", "alice@example.com")

	eventually(t, func() bool { return s.conn.count(room.TypeScores) == 1 }, "scores not delivered")
	assert.Equal(t, 1, s.conn.count(room.TypePlayers))
	assert.Equal(t, 1, s.conn.count(room.TypeTurn))
	assert.Equal(t, 1, s.conn.count(room.TypeWord), "sole player is the drawer")

	word, ok := s.conn.last(room.TypeWord)
	require.True(t, ok)
	assert.Equal(t, "apple", word.Data)
}

func TestGateway_WordGoesOnlyToDrawer(t *testing.T) {
	g := newTestGateway(t)
	drawer := startSession(g, "c1")
	guesser := startSession(g, "c2")
	defer drawer.end(t)
	defer guesser.end(t)

	drawer.join("r1", "alice", "alice@example.com")
	eventually(t, func() bool { return drawer.conn.count(room.TypeWord) == 1 }, "drawer word missing")

	guesser.join("r1", "bob", "bob@example.com")
	eventually(t, func() bool { return guesser.conn.count(room.TypePlayers) == 1 }, "join not delivered")

	assert.Zero(t, guesser.conn.count(room.TypeWord), "non-drawer must never see the word")
	// Both see the roster refresh from bob's join.
	eventually(t, func() bool { return drawer.conn.count(room.TypePlayers) == 2 }, "roster refresh missing")
}

func TestGateway_StrokeRelayedToOthersOnly(t *testing.T) {
	g := newTestGateway(t)
	a := startSession(g, "c1")
	b := startSession(g, "c2")
	defer a.end(t)
	defer b.end(t)

	a.join("r1", "alice", "alice@example.com")
	b.join("r1", "bob", "bob@example.com")
	eventually(t, func() bool { return a.conn.count(room.TypePlayers) == 2 }, "joins not settled")

	a.conn.queueRaw(`{"type":"stroke","data":{"x":10,"y":20,"color":"#f00","eraser":false}}`)

	eventually(t, func() bool { return b.conn.count(room.TypeStroke) == 1 }, "stroke not relayed")
	assert.Zero(t, a.conn.count(room.TypeStroke), "sender must not receive its own stroke")

	stroke, ok := b.conn.last(room.TypeStroke)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":10,"y":20,"color":"#f00","eraser":false}`,
		string(stroke.Data.(json.RawMessage)))
}

func TestGateway_ChatBroadcastToRoom(t *testing.T) {
	g := newTestGateway(t)
	a := startSession(g, "c1")
	b := startSession(g, "c2")
	defer a.end(t)
	defer b.end(t)

	a.join("r1", "alice", "alice@example.com")
	b.join("r1", "bob", "bob@example.com")
	eventually(t, func() bool { return a.conn.count(room.TypePlayers) == 2 }, "joins not settled")

	b.conn.queue(Event{Type: EventChat, Data: mustRaw(ChatPayload{Text: "is it a fruit?"})})

	eventually(t, func() bool { return a.conn.count(room.TypeChat) == 1 }, "chat not delivered")
	chat, ok := a.conn.last(room.TypeChat)
	require.True(t, ok)
	assert.Equal(t, "bob@example.com: is it a fruit?", chat.Data)
	eventually(t, func() bool { return b.conn.count(room.TypeChat) == 1 }, "chat skips the sender")
}

func TestGateway_CorrectGuessRotatesDrawer(t *testing.T) {
	g := newTestGateway(t)
	a := startSession(g, "c1")
	b := startSession(g, "c2")
	defer a.end(t)
	defer b.end(t)

	a.join("r1", "alice", "alice@example.com")
	b.join("r1", "bob", "bob@example.com")
	eventually(t, func() bool { return a.conn.count(room.TypePlayers) == 2 }, "joins not settled")

	b.conn.queue(Event{Type: EventGuess, Data: mustRaw(GuessPayload{Text: "apple"})})

	eventually(t, func() bool { return b.conn.count(room.TypeWord) == 1 }, "new drawer word missing")
	eventually(t, func() bool { return a.conn.count(room.TypeCorrect) == 1 }, "correct-guess missing")

	turn, ok := a.conn.last(room.TypeTurn)
	require.True(t, ok)
	assert.Equal(t, room.TurnState{DrawerID: "bob", DrawerLabel: "bob@example.com"},
		turn.Data.(room.TurnState))

	assert.Equal(t, 1, a.conn.count(room.TypeWord), "old drawer keeps only the original word")
}

func TestGateway_WrongGuessIsSilent(t *testing.T) {
	g := newTestGateway(t)
	a := startSession(g, "c1")
	b := startSession(g, "c2")
	defer a.end(t)
	defer b.end(t)

	a.join("r1", "alice", "alice@example.com")
	b.join("r1", "bob", "bob@example.com")
	// Scores is the last message of a join plan, so once two have landed
	// every join broadcast has been written out.
	eventually(t, func() bool { return a.conn.count(room.TypeScores) == 2 }, "joins not settled")

	before := len(a.conn.messages())
	b.conn.queue(Event{Type: EventGuess, Data: mustRaw(GuessPayload{Text: "banana"})})
	// Follow with a chat so we know the guess has been processed.
	b.conn.queue(Event{Type: EventChat, Data: mustRaw(ChatPayload{Text: "hm"})})

	eventually(t, func() bool { return a.conn.count(room.TypeChat) == 1 }, "chat not delivered")
	assert.Equal(t, before+1, len(a.conn.messages()), "wrong guess must emit nothing")
}

func TestGateway_EventBeforeJoinIgnored(t *testing.T) {
	g := newTestGateway(t)
	s := startSession(g, "c1")

	s.conn.queue(Event{Type: EventChat, Data: mustRaw(ChatPayload{Text: "hello?"})})
	s.conn.queue(Event{Type: EventGuess, Data: mustRaw(GuessPayload{Text: "apple"})})
	s.end(t)

	assert.Empty(t, s.conn.messages())
	assert.Equal(t, 0, g.registry.Count(), "no room may be created before a join")
}

func TestGateway_SecondJoinIgnored(t *testing.T) {
	g := newTestGateway(t)
	s := startSession(g, "c1")
	defer s.end(t)

	s.join("r1", "alice", "alice@example.com")
	eventually(t, func() bool { return s.conn.count(room.TypePlayers) == 1 }, "join not delivered")

	s.join("r2", "alice", "alice@example.com")
	// The binding is unchanged; no second room appears.
	s.conn.queue(Event{Type: EventChat, Data: mustRaw(ChatPayload{Text: "still here"})})
	eventually(t, func() bool { return s.conn.count(room.TypeChat) == 1 }, "chat not delivered")

	assert.Equal(t, 1, g.registry.Count())
	assert.Nil(t, g.registry.Get("r2"))
}

func TestGateway_MalformedEventsDropped(t *testing.T) {
	g := newTestGateway(t)
	s := startSession(g, "c1")
	defer s.end(t)

	s.conn.queueRaw(`not json at all`)
	s.conn.queueRaw(`{"type":"join","data":{"roomId":""}}`)
	s.join("r1", "alice", "alice@example.com")

	eventually(t, func() bool { return s.conn.count(room.TypePlayers) == 1 }, "valid join still works")
	assert.Equal(t, 1, g.registry.Count())
}

func TestGateway_DisconnectTearsDownRoom(t *testing.T) {
	g := newTestGateway(t)
	a := startSession(g, "c1")
	b := startSession(g, "c2")

	a.join("r1", "alice", "alice@example.com")
	b.join("r1", "bob", "bob@example.com")
	eventually(t, func() bool { return a.conn.count(room.TypePlayers) == 2 }, "joins not settled")

	a.end(t)
	eventually(t, func() bool { return b.conn.count(room.TypePlayers) == 2 }, "leave roster update missing")

	players, ok := b.conn.last(room.TypePlayers)
	require.True(t, ok)
	assert.Equal(t, []string{"bob@example.com"}, players.Data)

	b.end(t)
	eventually(t, func() bool { return g.registry.Count() == 0 }, "empty room not deregistered")
	assert.Equal(t, 0, g.ConnCount())
}

func TestGateway_RoomsAreIsolated(t *testing.T) {
	g := newTestGateway(t)
	a := startSession(g, "c1")
	b := startSession(g, "c2")
	defer a.end(t)
	defer b.end(t)

	a.join("r1", "alice", "alice@example.com")
	b.join("r2", "bob", "bob@example.com")
	eventually(t, func() bool { return b.conn.count(room.TypePlayers) == 1 }, "joins not settled")

	a.conn.queue(Event{Type: EventChat, Data: mustRaw(ChatPayload{Text: "r1 only"})})

	eventually(t, func() bool { return a.conn.count(room.TypeChat) == 1 }, "chat not delivered")
	assert.Zero(t, b.conn.count(room.TypeChat), "chat must not cross rooms")
	assert.Equal(t, 2, g.registry.Count())
}

func TestGateway_ConcurrentJoinsSameRoom(t *testing.T) {
	g := newTestGateway(t)

	const n = 8
	sessions := make([]*session, n)
	for i := 0; i < n; i++ {
		sessions[i] = startSession(g, fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		i, s := i, s
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.join("contested", fmt.Sprintf("p%d", i), fmt.Sprintf("p%d@example.com", i))
		}()
	}
	wg.Wait()

	eventually(t, func() bool { return g.ConnCount() == n }, "not all connections bound")
	assert.Equal(t, 1, g.registry.Count(), "racing joins must share one room")

	for _, s := range sessions {
		s.end(t)
	}
	eventually(t, func() bool { return g.registry.Count() == 0 }, "room not torn down")
}
