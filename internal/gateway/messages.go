package gateway

import "encoding/json"

// Inbound event types. Disconnect has no event; it is the socket closing.
const (
	EventJoin   = "join"
	EventStroke = "stroke"
	EventChat   = "chat"
	EventGuess  = "guess"
)

// Event is the inbound wire envelope. Data is re-parsed per event type;
// stroke payloads are relayed without being parsed at all.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JoinPayload binds a connection to a room.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Email    string `json:"email"`
}

// ChatPayload carries a chat line.
type ChatPayload struct {
	Text string `json:"text"`
}

// GuessPayload carries a guess at the secret word.
type GuessPayload struct {
	Text string `json:"text"`
}
