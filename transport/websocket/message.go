package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
)

const (
	// ActionRoomUpdate - server to client: a full room snapshot. Client to server: a new game state.
	ActionRoomUpdate = "room:update"
	ActionError      = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func newMessage(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	message, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return message, nil
}

func newErrorMessage(err error) ([]byte, error) {
	return newMessage(ActionError, ErrorPayload{Error: err.Error(), Kind: apperror.KindOf(err)})
}
