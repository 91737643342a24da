package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/netgate/netgate/internal/domain/attempt"
)

// MockRepository is a mock implementation of attempt.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Record(ctx context.Context, a *attempt.Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) CountRecentFailures(ctx context.Context, address string, window time.Duration) (int, error) {
	args := m.Called(ctx, address, window)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) Lock(ctx context.Context, address string, until time.Time, failures int) error {
	args := m.Called(ctx, address, until, failures)
	return args.Error(0)
}

func (m *MockRepository) GetLock(ctx context.Context, address string) (*attempt.Lockout, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attempt.Lockout), args.Error(1)
}

func (m *MockRepository) ListAttempts(ctx context.Context, limit, offset int) ([]*attempt.Attempt, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*attempt.Attempt), args.Error(1)
}
