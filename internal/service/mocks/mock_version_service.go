package mocks

import (
	"context"
	"time"

	"cmssync/internal/model"
	"cmssync/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockVersionService struct {
	mock.Mock
}

var _ service.VersionService = (*MockVersionService)(nil)

func (m *MockVersionService) CreateVersion(ctx context.Context, in service.CreateVersionInput) (*model.Version, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionService) GetHistory(ctx context.Context, key model.ContentKey, q service.HistoryQuery) (*service.VersionHistory, error) {
	args := m.Called(ctx, key, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VersionHistory), args.Error(1)
}

func (m *MockVersionService) GetVersion(ctx context.Context, key model.ContentKey, number int) (*model.Version, error) {
	args := m.Called(ctx, key, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionService) GetActiveVersion(ctx context.Context, key model.ContentKey) (*model.Version, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionService) RestoreVersion(ctx context.Context, key model.ContentKey, number int, requestedBy string) (*model.Version, error) {
	args := m.Called(ctx, key, number, requestedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionService) CompareVersions(ctx context.Context, key model.ContentKey, a, b int) (*model.VersionComparison, error) {
	args := m.Called(ctx, key, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VersionComparison), args.Error(1)
}

func (m *MockVersionService) PurgeVersions(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}
