package session

import (
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/pkg"
)

// ScoreBoard - append-only history of the games finished in this session.
type ScoreBoard struct {
	mu    sync.Mutex
	games []entity.GameRecord
	tally entity.Tally
}

func NewScoreBoard() *ScoreBoard {
	return &ScoreBoard{}
}

func (that *ScoreBoard) Record(roomCode string, outcome entity.Outcome, board entity.Board, finishedAt time.Time) {
	if !outcome.IsDecided() {
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.games = append(that.games, entity.GameRecord{
		ID:         pkg.NewRecordID(),
		RoomCode:   roomCode,
		Outcome:    outcome,
		Board:      board,
		FinishedAt: finishedAt,
	})
	that.tally.Add(outcome)
}

func (that *ScoreBoard) Games() []entity.GameRecord {
	that.mu.Lock()
	defer that.mu.Unlock()

	games := make([]entity.GameRecord, len(that.games))
	copy(games, that.games)

	return games
}

func (that *ScoreBoard) Tally() entity.Tally {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.tally
}
