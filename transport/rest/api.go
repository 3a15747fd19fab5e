package rest

import "github.com/rocketscienceinc/tictactoe-online/internal/entity"

type CreateRoomRequest struct {
	HostID string `json:"hostId"`
}

type JoinRoomRequest struct {
	GuestID string `json:"guestId"`
}

// RoomResponse - the room plus the participant token for the seat just taken.
type RoomResponse struct {
	Room  *entity.Room `json:"room"`
	Token string       `json:"token,omitempty"`
}

type HistoryResponse struct {
	Games []*entity.GameRecord `json:"games"`
	Tally entity.Tally         `json:"tally"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
