package rest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
)

type mockRoomManager struct {
	mock.Mock
}

func newMockRoomManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockRoomManager {
	m := &mockRoomManager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (that *mockRoomManager) CreateRoom(ctx context.Context, hostID string) (*entity.Room, error) {
	args := that.Called(ctx, hostID)
	room, _ := args.Get(0).(*entity.Room)
	return room, args.Error(1)
}

func (that *mockRoomManager) JoinRoom(ctx context.Context, code, guestID string) (*entity.Room, error) {
	args := that.Called(ctx, code, guestID)
	room, _ := args.Get(0).(*entity.Room)
	return room, args.Error(1)
}

func (that *mockRoomManager) UpdateBoardAs(
	ctx context.Context, code, participantID string, state entity.GameState,
) (*entity.Room, error) {
	args := that.Called(ctx, code, participantID, state)
	room, _ := args.Get(0).(*entity.Room)
	return room, args.Error(1)
}

func (that *mockRoomManager) GetRoom(ctx context.Context, code, viewerID string) (*entity.Room, error) {
	args := that.Called(ctx, code, viewerID)
	room, _ := args.Get(0).(*entity.Room)
	return room, args.Error(1)
}

func (that *mockRoomManager) History(ctx context.Context, code string) ([]*entity.GameRecord, entity.Tally, error) {
	args := that.Called(ctx, code)
	games, _ := args.Get(0).([]*entity.GameRecord)
	return games, args.Get(1).(entity.Tally), args.Error(2)
}
