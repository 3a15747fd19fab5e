package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Mark string

const (
	EmptyCell Mark = ""
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
)

type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "Draw"
)

var (
	ErrUnknownMark    = errors.New("unknown mark")
	ErrUnknownOutcome = errors.New("unknown outcome")

	jsonNull = []byte("null")

	// WinCombos - every row, column and diagonal of the 3x3 board in row-major indexes.
	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Board - nine cells indexed 0..8 in row-major order.
type Board [9]Mark

// GameState - the mutable part of a room that participants overwrite on every move.
type GameState struct {
	Board   Board      `json:"board"`
	Turn    Mark       `json:"turn"`
	Outcome Outcome    `json:"outcome"`
	Status  RoomStatus `json:"status"`
}

func (that Mark) IsValid() bool {
	return that == PlayerX || that == PlayerO
}

func (that Mark) MarshalJSON() ([]byte, error) {
	if that == EmptyCell {
		return jsonNull, nil
	}

	if !that.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMark, string(that))
	}

	return json.Marshal(string(that))
}

func (that *Mark) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*that = EmptyCell
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal mark: %w", err)
	}

	mark := Mark(raw)
	if mark != EmptyCell && !mark.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownMark, raw)
	}

	*that = mark

	return nil
}

// Win - the outcome where the given mark completed a line.
func Win(mark Mark) Outcome {
	return Outcome(mark)
}

func (that Outcome) IsDecided() bool {
	return that != OutcomeNone
}

// Winner - the winning mark, or EmptyCell for a draw or an undecided game.
func (that Outcome) Winner() Mark {
	switch that {
	case OutcomeX:
		return PlayerX
	case OutcomeO:
		return PlayerO
	default:
		return EmptyCell
	}
}

func (that Outcome) MarshalJSON() ([]byte, error) {
	switch that {
	case OutcomeNone:
		return jsonNull, nil
	case OutcomeX, OutcomeO, OutcomeDraw:
		return json.Marshal(string(that))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, string(that))
	}
}

func (that *Outcome) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*that = OutcomeNone
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal outcome: %w", err)
	}

	switch outcome := Outcome(raw); outcome {
	case OutcomeNone, OutcomeX, OutcomeO, OutcomeDraw:
		*that = outcome
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutcome, raw)
	}
}

func (that Board) IsEmpty() bool {
	for _, cell := range that {
		if cell != EmptyCell {
			return false
		}
	}

	return true
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// NewGameState - an empty board with X to move.
func NewGameState(status RoomStatus) GameState {
	return GameState{
		Turn:   PlayerX,
		Status: status,
	}
}
