package mocks

import (
	"context"
	"time"

	"cmssync/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockContentRepository struct {
	mock.Mock
}

func (m *MockContentRepository) FindByKey(ctx context.Context, key model.ContentKey) (*model.ContentDocument, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentDocument), args.Error(1)
}

func (m *MockContentRepository) Create(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentDocument), args.Error(1)
}

func (m *MockContentRepository) Update(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	args := m.Called(ctx, doc)
	if f, ok := args.Get(0).(func(context.Context, *model.ContentDocument) *model.ContentDocument); ok {
		return f(ctx, doc), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentDocument), args.Error(1)
}

func (m *MockContentRepository) SoftDelete(ctx context.Context, key model.ContentKey, deletedBy string, at time.Time) error {
	args := m.Called(ctx, key, deletedBy, at)
	return args.Error(0)
}
