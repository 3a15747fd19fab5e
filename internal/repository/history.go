package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
)

const gamesCollection = "games"

// HistoryRepository - archive of completed games, one document per game.
type HistoryRepository interface {
	EnsureIndexes(ctx context.Context, retention time.Duration) error
	Record(ctx context.Context, record *entity.GameRecord) error
	ListByRoom(ctx context.Context, code string) ([]*entity.GameRecord, error)
}

type dbHistory struct {
	games *mongo.Collection
}

func NewHistoryRepository(db *mongo.Database) HistoryRepository {
	return &dbHistory{
		games: db.Collection(gamesCollection),
	}
}

// EnsureIndexes - games expire together with their room so history never outlives the session.
func (that *dbHistory) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomCode", Value: 1}, {Key: "finishedAt", Value: 1}}},
	}

	if retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "finishedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}

	if _, err := that.games.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("%w: failed to create history indexes: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}

func (that *dbHistory) Record(ctx context.Context, record *entity.GameRecord) error {
	if _, err := that.games.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("%w: failed to record game: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}

// ListByRoom - games of one room, oldest first.
func (that *dbHistory) ListByRoom(ctx context.Context, code string) ([]*entity.GameRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "finishedAt", Value: 1}})

	cursor, err := that.games.Find(ctx, bson.M{"roomCode": code}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find games: %w", apperror.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	records := make([]*entity.GameRecord, 0)
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}

	return records, nil
}
