package mocks

import (
	"context"

	"cmssync/internal/model"
	"cmssync/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockSyncService struct {
	mock.Mock
}

var _ service.SyncService = (*MockSyncService)(nil)

func (m *MockSyncService) SyncCreate(ctx context.Context, key model.ContentKey, payload map[string]any, actor service.Actor) (*service.SyncResult, error) {
	args := m.Called(ctx, key, payload, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResult), args.Error(1)
}

func (m *MockSyncService) SyncUpdate(ctx context.Context, key model.ContentKey, patch map[string]any, actor service.Actor) (*service.SyncResult, error) {
	args := m.Called(ctx, key, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResult), args.Error(1)
}

func (m *MockSyncService) SyncDelete(ctx context.Context, key model.ContentKey, actor service.Actor) (*model.Version, error) {
	args := m.Called(ctx, key, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockSyncService) HandleOptimisticUpdate(ctx context.Context, key model.ContentKey, changes []model.Change, actor service.Actor, updateID string) (*service.OptimisticResult, error) {
	args := m.Called(ctx, key, changes, actor, updateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OptimisticResult), args.Error(1)
}

func (m *MockSyncService) RollbackUpdate(ctx context.Context, key model.ContentKey, updateID, reason string, actor service.Actor) (model.PendingUpdate, error) {
	args := m.Called(ctx, key, updateID, reason, actor)
	return args.Get(0).(model.PendingUpdate), args.Error(1)
}

func (m *MockSyncService) RestoreToVersion(ctx context.Context, key model.ContentKey, number int, actor service.Actor) (*service.SyncResult, error) {
	args := m.Called(ctx, key, number, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResult), args.Error(1)
}

func (m *MockSyncService) GetContent(ctx context.Context, key model.ContentKey) (*service.ContentRead, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ContentRead), args.Error(1)
}

func (m *MockSyncService) GetPendingUpdate(updateID string) (model.PendingUpdate, error) {
	args := m.Called(updateID)
	return args.Get(0).(model.PendingUpdate), args.Error(1)
}

func (m *MockSyncService) Stats() service.SyncStats {
	args := m.Called()
	return args.Get(0).(service.SyncStats)
}
