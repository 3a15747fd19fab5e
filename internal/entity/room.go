package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
)

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// Room - the shared record of one online match.
type Room struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	HostID    string     `json:"hostId"`
	GuestID   string     `json:"guestId"`
	Board     Board      `json:"board"`
	Turn      Mark       `json:"turn"`
	Outcome   Outcome    `json:"outcome"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func NewRoom(id, code, hostID string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Code:      code,
		HostID:    hostID,
		Turn:      PlayerX,
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

// MarshalJSON - an empty guest seat is written as null.
func (that Room) MarshalJSON() ([]byte, error) {
	type plain Room

	var guestID *string
	if that.GuestID != "" {
		guestID = &that.GuestID
	}

	return json.Marshal(struct {
		plain
		GuestID *string `json:"guestId"`
	}{plain: plain(that), GuestID: guestID})
}

// SeatGuest - takes the single guest seat; the host can never sit on both sides.
func (that *Room) SeatGuest(guestID string, now time.Time) error {
	if !that.IsWaiting() || that.HasGuest() {
		return fmt.Errorf("%w: %s", apperror.ErrRoomFull, that.Code)
	}

	if guestID == that.HostID {
		return fmt.Errorf("%w: host already holds a seat in %s", apperror.ErrRoomFull, that.Code)
	}

	that.GuestID = guestID
	that.Status = StatusPlaying
	that.UpdatedAt = now

	return nil
}

// HasGuest - reports whether the single guest seat is taken.
func (that *Room) HasGuest() bool {
	return that.GuestID != ""
}

func (that *Room) IsMember(participantID string) bool {
	return participantID != "" && (participantID == that.HostID || participantID == that.GuestID)
}

// RoleOf - the role the participant holds in this room.
func (that *Room) RoleOf(participantID string) (Role, error) {
	switch {
	case participantID == "":
		return RoleNone, apperror.ErrNotRoomMember
	case participantID == that.HostID:
		return RoleHost, nil
	case participantID == that.GuestID:
		return RoleGuest, nil
	default:
		return RoleNone, fmt.Errorf("%w: room %s", apperror.ErrNotRoomMember, that.Code)
	}
}

// IsReadableBy - host and guest may always read; anyone may read a room that still waits for a guest.
func (that *Room) IsReadableBy(participantID string) bool {
	if that.IsWaiting() && !that.HasGuest() {
		return true
	}

	return that.IsMember(participantID)
}

func (that *Room) State() GameState {
	return GameState{
		Board:   that.Board,
		Turn:    that.Turn,
		Outcome: that.Outcome,
		Status:  that.Status,
	}
}

// ApplyState - overwrites the mutable fields with a participant's snapshot.
func (that *Room) ApplyState(state GameState, now time.Time) {
	that.Board = state.Board
	that.Turn = state.Turn
	that.Outcome = state.Outcome
	that.Status = state.Status
	that.UpdatedAt = now
}
