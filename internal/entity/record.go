package entity

import "time"

// GameRecord - one completed game, appended to a room's history.
type GameRecord struct {
	ID         string    `json:"id" bson:"_id"`
	RoomCode   string    `json:"roomCode" bson:"roomCode"`
	Outcome    Outcome   `json:"outcome" bson:"outcome"`
	Board      Board     `json:"board" bson:"board"`
	FinishedAt time.Time `json:"finishedAt" bson:"finishedAt"`
}

type Tally struct {
	XWins int `json:"xWins"`
	OWins int `json:"oWins"`
	Draws int `json:"draws"`
}

func (that *Tally) Add(outcome Outcome) {
	switch outcome {
	case OutcomeX:
		that.XWins++
	case OutcomeO:
		that.OWins++
	case OutcomeDraw:
		that.Draws++
	case OutcomeNone:
	}
}

func TallyOf(records []*GameRecord) Tally {
	var tally Tally
	for _, record := range records {
		tally.Add(record.Outcome)
	}

	return tally
}
