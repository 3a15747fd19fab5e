package tictactoe

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
)

var (
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrInvalidCell     = errors.New("invalid cell index")
	ErrInvalidMark     = errors.New("invalid mark")
	ErrGameFinished    = errors.New("game is already finished")
	ErrUnexpectedBoard = errors.New("board does not follow from the previous one")
)

// ApplyMove - returns a copy of the board with the cell taken by mark. The input board is never modified.
func ApplyMove(board entity.Board, mark entity.Mark, cell int) (entity.Board, error) {
	if err := validateMove(board, mark, cell); err != nil {
		return board, fmt.Errorf("%w: %w", apperror.ErrInvalidMove, err)
	}

	next := board
	next[cell] = mark

	return next, nil
}

// ComputeOutcome - a win for the first completed line, a draw on a full board, otherwise none.
// Only boards produced by sequential ApplyMove calls are meaningful here.
func ComputeOutcome(board entity.Board) entity.Outcome {
	for _, combo := range entity.WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return entity.Win(a)
		}
	}

	if board.IsFull() {
		return entity.OutcomeDraw
	}

	return entity.OutcomeNone
}

func NextTurn(mark entity.Mark) entity.Mark {
	if mark == entity.PlayerX {
		return entity.PlayerO
	}
	return entity.PlayerX
}

// MakeTurn - plays state.Turn on cell and returns the resulting state.
// The turn passes to the opponent only while the game is undecided.
func MakeTurn(state entity.GameState, cell int) (entity.GameState, error) {
	board, err := ApplyMove(state.Board, state.Turn, cell)
	if err != nil {
		return state, err
	}

	next := state
	next.Board = board
	next.Outcome = ComputeOutcome(board)

	if next.Outcome.IsDecided() {
		next.Status = entity.StatusFinished
	} else {
		next.Turn = NextTurn(state.Turn)
	}

	return next, nil
}

// VerifyTransition - next must be either a cleared board or prev with exactly one new cell taken by mark.
func VerifyTransition(prev, next entity.Board, mark entity.Mark) error {
	if next.IsEmpty() {
		return nil
	}

	changed := -1
	for i := range prev {
		if prev[i] == next[i] {
			continue
		}

		if changed != -1 {
			return fmt.Errorf("%w: %w: more than one cell changed", apperror.ErrInvalidMove, ErrUnexpectedBoard)
		}
		changed = i
	}

	if changed == -1 {
		return fmt.Errorf("%w: %w: no cell changed", apperror.ErrInvalidMove, ErrUnexpectedBoard)
	}

	if next[changed] == entity.EmptyCell {
		return fmt.Errorf("%w: %w: cell %d was cleared", apperror.ErrInvalidMove, ErrUnexpectedBoard, changed)
	}

	if next[changed] != mark {
		return fmt.Errorf("%w: cell %d holds %q", apperror.ErrNotYourTurn, changed, next[changed])
	}

	if _, err := ApplyMove(prev, mark, changed); err != nil {
		return err
	}

	return nil
}

// validateMove - checks if the move is valid.
func validateMove(board entity.Board, mark entity.Mark, cell int) error {
	if cell < 0 || cell >= len(board) {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if !mark.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMark, string(mark))
	}

	if ComputeOutcome(board).IsDecided() {
		return ErrGameFinished
	}

	if board[cell] != entity.EmptyCell {
		return ErrCellOccupied
	}

	return nil
}
