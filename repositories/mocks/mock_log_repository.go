package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lordwilsonDev/transparency-log/models"
)

// MockLogRepository is a mock implementation of repositories.LogRepository
type MockLogRepository struct {
	mock.Mock
}

// NewMockLogRepository creates a new mock bound to the test's lifecycle
func NewMockLogRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockLogRepository {
	m := &MockLogRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLogRepository) Insert(ctx context.Context, entry *models.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLogRepository) Tail(ctx context.Context) (*models.LogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogEntry), args.Error(1)
}

func (m *MockLogRepository) GetByHash(ctx context.Context, actionHash string) (*models.LogEntry, error) {
	args := m.Called(ctx, actionHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogEntry), args.Error(1)
}

func (m *MockLogRepository) GetRecent(ctx context.Context, limit int) ([]models.LogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LogEntry), args.Error(1)
}

func (m *MockLogRepository) GetAll(ctx context.Context) ([]models.LogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LogEntry), args.Error(1)
}

func (m *MockLogRepository) GetAllHashes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLogRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLogRepository) TimeBounds(ctx context.Context) (time.Time, time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Get(1).(time.Time), args.Error(2)
}
