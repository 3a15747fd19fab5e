package apperror

import "errors"

var (
	ErrStoreUnavailable       = errors.New("room store unavailable")
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomFull               = errors.New("room is full")
	ErrInvalidMove            = errors.New("invalid move")
	ErrIdentityCreationFailed = errors.New("could not create participant identity")

	ErrNotRoomMember    = errors.New("not a member of this room")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrInvalidToken     = errors.New("invalid or expired token")
)
