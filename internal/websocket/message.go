package websocket

import "encoding/json"

// Actions exchanged with clients.
const (
	ActionSessionRevoked = "session.revoked"
	ActionProfileUpdated = "profile.updated"
	ActionConnected      = "connected"
	ActionPing           = "ping"
	ActionPong           = "pong"
	ActionError          = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewMessage encodes an action and its payload.
func NewMessage(action string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Action: action, Payload: payload})
}

// NewErrorMessage encodes an error notice for the client.
func NewErrorMessage(message string) []byte {
	b, _ := json.Marshal(Message{Action: ActionError, Payload: map[string]string{"message": message}})
	return b
}
