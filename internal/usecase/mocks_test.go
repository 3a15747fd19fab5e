package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository"
)

type mockRoomRepo struct {
	mock.Mock
}

func newMockRoomRepo(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockRoomRepo {
	m := &mockRoomRepo{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (that *mockRoomRepo) Create(ctx context.Context, room *entity.Room) error {
	args := that.Called(ctx, room)
	return args.Error(0)
}

func (that *mockRoomRepo) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	args := that.Called(ctx, code)
	return args.Get(0).(*entity.Room), args.Error(1)
}

func (that *mockRoomRepo) Join(ctx context.Context, code, guestID string) (*entity.Room, error) {
	args := that.Called(ctx, code, guestID)
	return args.Get(0).(*entity.Room), args.Error(1)
}

// Update - runs the guard against the room returned by the expectation, the way the store does.
func (that *mockRoomRepo) Update(
	ctx context.Context, code string, state entity.GameState, guard repository.Guard,
) (*entity.Room, error) {
	args := that.Called(ctx, code, state)

	current, _ := args.Get(0).(*entity.Room)
	if err := args.Error(1); err != nil {
		return nil, err
	}

	stored := *current
	if guard != nil {
		if err := guard(&stored); err != nil {
			return nil, err
		}
	}

	stored.ApplyState(state, current.UpdatedAt)

	return &stored, nil
}

func (that *mockRoomRepo) Subscribe(
	ctx context.Context, code string, onUpdate func(*entity.Room),
) (repository.Subscription, error) {
	args := that.Called(ctx, code, onUpdate)

	sub, _ := args.Get(0).(repository.Subscription)

	return sub, args.Error(1)
}

type mockHistoryRepo struct {
	mock.Mock
}

func newMockHistoryRepo(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockHistoryRepo {
	m := &mockHistoryRepo{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (that *mockHistoryRepo) Record(ctx context.Context, record *entity.GameRecord) error {
	args := that.Called(ctx, record)
	return args.Error(0)
}

func (that *mockHistoryRepo) ListByRoom(ctx context.Context, code string) ([]*entity.GameRecord, error) {
	args := that.Called(ctx, code)
	return args.Get(0).([]*entity.GameRecord), args.Error(1)
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() error {
	return nil
}

func (noopSubscription) Done() <-chan struct{} {
	return nil
}

func (noopSubscription) Err() error {
	return nil
}
