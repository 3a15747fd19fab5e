package session

import (
	"errors"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
)

type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseCreating           Phase = "creating"
	PhaseJoining            Phase = "joining"
	PhaseWaitingForOpponent Phase = "waiting_for_opponent"
	PhaseActive             Phase = "active"
	PhaseFinished           Phase = "finished"
	PhaseError              Phase = "error"
)

// State - what the presentation layer renders. It is a copy; mutating it has no effect on the session.
type State struct {
	RoomCode string
	Role     entity.Role
	Mark     entity.Mark

	Board   entity.Board
	Turn    entity.Mark
	Outcome entity.Outcome
	Status  entity.RoomStatus

	Phase        Phase
	Connected    bool
	ErrorMessage string
	Err          error
}

func (that State) GameState() entity.GameState {
	return entity.GameState{
		Board:   that.Board,
		Turn:    that.Turn,
		Outcome: that.Outcome,
		Status:  that.Status,
	}
}

// InRoom - the session holds a seat in an online room.
func (that State) InRoom() bool {
	return that.RoomCode != "" && that.Role != entity.RoleNone
}

// IsMyTurn - in local mode both marks belong to this device.
func (that State) IsMyTurn() bool {
	return that.Mark == entity.EmptyCell || that.Mark == that.Turn
}

func phaseOf(status entity.RoomStatus) Phase {
	switch status {
	case entity.StatusWaiting:
		return PhaseWaitingForOpponent
	case entity.StatusFinished:
		return PhaseFinished
	case entity.StatusPlaying:
		return PhaseActive
	default:
		return PhaseIdle
	}
}

// errorMessage - the inline message shown next to the room setup form.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return "Room not found. Check the code and try again."
	case errors.Is(err, apperror.ErrRoomFull):
		return "This room already has two players."
	case errors.Is(err, apperror.ErrIdentityCreationFailed):
		return "Could not create a player identity."
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return "Could not reach the game server."
	default:
		return err.Error()
	}
}
