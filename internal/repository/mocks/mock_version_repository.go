package mocks

import (
	"context"
	"time"

	"cmssync/internal/model"
	"cmssync/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) Create(ctx context.Context, v *model.Version) (*model.Version, error) {
	args := m.Called(ctx, v)
	if f, ok := args.Get(0).(func(context.Context, *model.Version) *model.Version); ok {
		return f(ctx, v), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) List(ctx context.Context, key model.ContentKey, pq repository.PageQuery, includePayload bool) (*repository.PageResult[model.VersionSummary], error) {
	args := m.Called(ctx, key, pq, includePayload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.VersionSummary]), args.Error(1)
}

func (m *MockVersionRepository) FindByNumber(ctx context.Context, key model.ContentKey, number int) (*model.Version, error) {
	args := m.Called(ctx, key, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) FindActive(ctx context.Context, key model.ContentKey) (*model.Version, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
