package apperror

import (
	"errors"
	"fmt"
)

// kinds - stable names of the error kinds as they travel over the wire.
var kinds = []struct {
	name string
	err  error
}{
	{"store_unavailable", ErrStoreUnavailable},
	{"room_not_found", ErrRoomNotFound},
	{"room_full", ErrRoomFull},
	{"invalid_move", ErrInvalidMove},
	{"identity_creation_failed", ErrIdentityCreationFailed},
	{"not_room_member", ErrNotRoomMember},
	{"game_not_started", ErrGameIsNotStarted},
	{"not_your_turn", ErrNotYourTurn},
	{"invalid_token", ErrInvalidToken},
}

// KindOf - the wire name of the first known kind err wraps, empty when none.
func KindOf(err error) string {
	for _, kind := range kinds {
		if errors.Is(err, kind.err) {
			return kind.name
		}
	}

	return ""
}

// FromKind - rebuilds an error that matches the named kind with errors.Is.
func FromKind(kind, message string) error {
	for _, known := range kinds {
		if known.name != kind {
			continue
		}

		if message == "" || message == known.err.Error() {
			return known.err
		}

		return fmt.Errorf("%w: %s", known.err, message)
	}

	return errors.New(message)
}
