package room

import "encoding/json"

// Message types carried in the outbound envelope.
const (
	TypePlayers  = "players"
	TypeTurn     = "turn"
	TypeWord     = "word"
	TypeScores   = "scores"
	TypeStroke   = "stroke"
	TypeChat     = "chat"
	TypeCorrect  = "correct"
	TypeGameOver = "game_over"
)

// Message is the outbound wire envelope. Data is one of the payload
// types below, or a plain string for TypeWord and TypeChat.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TurnState announces the current drawer to the room.
// DrawerLabel is empty when the drawer has disconnected without leaving.
type TurnState struct {
	DrawerID    string `json:"drawerId"`
	DrawerLabel string `json:"drawerLabel"`
}

// CorrectGuess announces that a guesser matched the secret word.
type CorrectGuess struct {
	Guesser string `json:"guesser"`
	Word    string `json:"word"`
}

// GameOver announces that a player reached the winning score.
type GameOver struct {
	Winner string `json:"winner"`
}

// Audience selects the recipients of an addressed message.
type Audience int

const (
	// ToRoom delivers to every connection bound to the room.
	ToRoom Audience = iota
	// ToRoomExcept delivers to every connection bound to the room
	// except the one named in Addressed.ConnID.
	ToRoomExcept
	// ToConn delivers to the single connection named in Addressed.ConnID.
	ToConn
	// ToPlayer delivers to every live connection bound to the player
	// named in Addressed.PlayerID, resolved at delivery time.
	ToPlayer
)

// Addressed pairs a message with its recipient set.
type Addressed struct {
	Audience Audience
	// ConnID names the target (ToConn) or excluded (ToRoomExcept) connection.
	ConnID string
	// PlayerID names the target player for ToPlayer.
	PlayerID string
	Msg      Message
}

// Plan is the set of addressed messages a room transition asks the
// transport layer to deliver. Room operations never perform I/O; they
// describe it here and the caller delivers after the room lock is released.
type Plan []Addressed

func (p Plan) add(a Audience, connID, playerID string, msg Message) Plan {
	return append(p, Addressed{Audience: a, ConnID: connID, PlayerID: playerID, Msg: msg})
}

func (p Plan) toRoom(msg Message) Plan {
	return p.add(ToRoom, "", "", msg)
}

func (p Plan) toRoomExcept(connID string, msg Message) Plan {
	return p.add(ToRoomExcept, connID, "", msg)
}

func (p Plan) toConn(connID string, msg Message) Plan {
	return p.add(ToConn, connID, "", msg)
}

func (p Plan) toPlayer(playerID string, msg Message) Plan {
	return p.add(ToPlayer, "", playerID, msg)
}

// StrokeMessage wraps an opaque stroke payload for relay. The payload is
// not inspected; the drawing client's coordinates pass through unchanged.
func StrokeMessage(payload json.RawMessage) Message {
	return Message{Type: TypeStroke, Data: payload}
}
