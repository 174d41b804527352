// Package room implements the per-room session state machine: roster
// membership, turn rotation, scoring, and the broadcast plans that
// describe what the transport must deliver after each transition.
package room

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/scrawl-game/scrawl/internal/game/words"
)

// Participant is one connected member of a room's roster.
type Participant struct {
	// ConnID is the connection identifier, unique per live connection.
	ConnID string
	// PlayerID is the stable player identifier supplied by the client.
	PlayerID string
	// Label is the display label shown to other players (e.g. email).
	Label string
}

// gameState holds the authoritative game data for one room.
// It is created on first join and discarded when the roster empties.
type gameState struct {
	// turnOrder lists every player who has ever joined this room's game,
	// in join order. Entries are never removed, even on disconnect.
	turnOrder []string
	// drawerIdx is the cursor into turnOrder for the current drawer.
	drawerIdx int
	// word is the secret the current drawer must convey.
	word string
	// scores maps playerID to point total for every entry in turnOrder.
	scores map[string]int
}

// Room owns one room's roster and game state. All mutating operations
// are serialized by the internal mutex; operations on different rooms
// proceed in parallel. Room performs no I/O: every operation returns a
// Plan for the caller to deliver outside the lock.
type Room struct {
	id      string
	words   *words.Bank
	winning int

	mu     sync.RWMutex
	roster []*Participant
	game   *gameState
}

// newRoom creates an empty room: no participants, no game state.
// Rooms are only constructed by the Registry.
func newRoom(id string, bank *words.Bank, winningScore int) *Room {
	return &Room{
		id:      id,
		words:   bank,
		winning: winningScore,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// Empty reports whether the roster has no participants.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roster) == 0
}

// Join adds a participant to the roster and enrolls them in the game.
//
// A second join with an already-known playerID is a rejoin: the existing
// roster entry is kept as-is, including its connection identifier. The
// game state is created lazily on the room's first join; the player is
// appended to the turn order exactly once with a zero score.
//
// Postcondition: Returns the plan announcing the roster, turn state, and
// scores to the room, plus the secret word to the joining connection when
// the joiner is the current drawer.
func (r *Room) Join(connID, playerID, label string) Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findByPlayer(playerID) == nil {
		r.roster = append(r.roster, &Participant{
			ConnID:   connID,
			PlayerID: playerID,
			Label:    label,
		})
	}

	if r.game == nil {
		r.game = &gameState{
			word:   r.words.Pick(),
			scores: make(map[string]int),
		}
	}
	g := r.game

	if !g.enrolled(playerID) {
		g.turnOrder = append(g.turnOrder, playerID)
		g.scores[playerID] = 0
	}

	drawerID := g.turnOrder[g.drawerIdx]

	var plan Plan
	plan = plan.toRoom(Message{Type: TypePlayers, Data: r.labels()})
	plan = plan.toRoom(Message{Type: TypeTurn, Data: TurnState{
		DrawerID:    drawerID,
		DrawerLabel: r.labelOf(drawerID),
	}})
	if playerID == drawerID {
		plan = plan.toConn(connID, Message{Type: TypeWord, Data: g.word})
	}
	plan = plan.toRoom(Message{Type: TypeScores, Data: g.snapshotScores()})
	return plan
}

// RelayStroke forwards an opaque stroke payload to everyone but the sender.
// No state is read or mutated beyond the plan itself.
func (r *Room) RelayStroke(senderConnID string, payload json.RawMessage) Plan {
	var plan Plan
	return plan.toRoomExcept(senderConnID, StrokeMessage(payload))
}

// RelayChat formats a chat line and addresses it to the whole room.
// The sender's roster label is used when known; otherwise the line is
// attributed to the connection identifier.
func (r *Room) RelayChat(senderConnID, text string) Plan {
	r.mu.RLock()
	label := ""
	if p := r.findByConn(senderConnID); p != nil {
		label = p.Label
	}
	r.mu.RUnlock()

	if label == "" {
		label = fmt.Sprintf("User %s", senderConnID)
	}

	var plan Plan
	return plan.toRoom(Message{Type: TypeChat, Data: fmt.Sprintf("%s: %s", label, text)})
}

// Guess checks text against the secret word and applies the outcome.
//
// An incorrect guess produces an empty plan and no state change; there is
// no wrong-guess notification. A correct guess scores a point for the
// guesser and either ends the game at the winning threshold, freezing the
// state until the room empties, or rotates the drawer and picks a fresh
// word. The new drawer's word message is addressed by playerID so the
// transport resolves whichever connections the drawer holds right now.
//
// Postcondition: Returns an empty plan when no game exists or the guess
// is wrong, otherwise the broadcasts described above.
func (r *Room) Guess(connID, playerID, text string) Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.game
	if g == nil {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(text), g.word) {
		return nil
	}

	g.scores[playerID]++

	guesser := r.labelOf(playerID)
	if guesser == "" {
		guesser = playerID
	}

	var plan Plan
	plan = plan.toRoom(Message{Type: TypeCorrect, Data: CorrectGuess{
		Guesser: guesser,
		Word:    g.word,
	}})

	if g.scores[playerID] >= r.winning {
		// Terminal state: the drawer and word stay frozen until the
		// room is torn down by everyone leaving.
		return plan.toRoom(Message{Type: TypeGameOver, Data: GameOver{Winner: guesser}})
	}

	g.drawerIdx = (g.drawerIdx + 1) % len(g.turnOrder)
	g.word = r.words.Pick()
	nextDrawer := g.turnOrder[g.drawerIdx]

	plan = plan.toRoom(Message{Type: TypeTurn, Data: TurnState{
		DrawerID:    nextDrawer,
		DrawerLabel: r.labelOf(nextDrawer),
	}})
	plan = plan.toRoom(Message{Type: TypeScores, Data: g.snapshotScores()})
	plan = plan.toPlayer(nextDrawer, Message{Type: TypeWord, Data: g.word})
	return plan
}

// Leave removes the participant for playerID, provided the stored
// connection identifier still matches. A disconnect for a connection the
// roster no longer tracks (replaced by a rejoin) is ignored entirely.
//
// Postcondition: Returns the roster-changed plan and whether the room is
// now empty. When empty, the game state has been discarded and the caller
// must deregister the room.
func (r *Room) Leave(connID, playerID string) (Plan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.roster {
		if p.PlayerID == playerID && p.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	r.roster = append(r.roster[:idx], r.roster[idx+1:]...)

	if len(r.roster) == 0 {
		r.game = nil
		return nil, true
	}

	var plan Plan
	return plan.toRoom(Message{Type: TypePlayers, Data: r.labels()}), false
}

// findByPlayer returns the roster entry for playerID, or nil.
// Caller must hold r.mu.
func (r *Room) findByPlayer(playerID string) *Participant {
	for _, p := range r.roster {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// findByConn returns the roster entry whose stored connection is connID, or nil.
// Caller must hold r.mu.
func (r *Room) findByConn(connID string) *Participant {
	for _, p := range r.roster {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// labels returns the display labels of all participants in roster order.
// Caller must hold r.mu.
func (r *Room) labels() []string {
	out := make([]string, 0, len(r.roster))
	for _, p := range r.roster {
		out = append(out, p.Label)
	}
	return out
}

// labelOf returns the display label for playerID, or "" when the player
// is not on the roster (e.g. a disconnected drawer).
// Caller must hold r.mu.
func (r *Room) labelOf(playerID string) string {
	if p := r.findByPlayer(playerID); p != nil {
		return p.Label
	}
	return ""
}

func (g *gameState) enrolled(playerID string) bool {
	for _, id := range g.turnOrder {
		if id == playerID {
			return true
		}
	}
	return false
}

// snapshotScores copies the score map so the plan stays valid after the
// room lock is released.
func (g *gameState) snapshotScores() map[string]int {
	out := make(map[string]int, len(g.scores))
	for k, v := range g.scores {
		out[k] = v
	}
	return out
}
