// Package mockstorage provides a testify-based mock implementation
// of the storage interface used by the service and router packages.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock

	// OnCountUsers, when set, answers CountUsers instead of the generic
	// mock handler.
	OnCountUsers func(ctx context.Context) (int64, error)

	// OnCountContents, when set, answers CountContents instead of the
	// generic mock handler.
	OnCountContents func(ctx context.Context) (int64, error)
}

func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *StorageMock) CreateUser(ctx context.Context, usr *models.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Bool(1), args.Error(2)
}

func (m *StorageMock) CountUsers(ctx context.Context) (int64, error) {
	if m.OnCountUsers != nil {
		return m.OnCountUsers(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) CreateContent(ctx context.Context, content *models.Content) error {
	args := m.Called(ctx, content)
	return args.Error(0)
}

func (m *StorageMock) UpdateContentAnalysis(
	ctx context.Context,
	id string,
	summary string,
	sentiment models.Sentiment,
) (*models.Content, error) {
	args := m.Called(ctx, id, summary, sentiment)
	content, _ := args.Get(0).(*models.Content)
	return content, args.Error(1)
}

func (m *StorageMock) ListContentsByOwner(ctx context.Context, ownerID string) ([]*models.Content, error) {
	args := m.Called(ctx, ownerID)
	contents, _ := args.Get(0).([]*models.Content)
	return contents, args.Error(1)
}

func (m *StorageMock) GetContentForOwner(ctx context.Context, id, ownerID string) (*models.Content, bool, error) {
	args := m.Called(ctx, id, ownerID)
	content, _ := args.Get(0).(*models.Content)
	return content, args.Bool(1), args.Error(2)
}

func (m *StorageMock) DeleteContentForOwner(ctx context.Context, id, ownerID string) (bool, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *StorageMock) ListUnanalyzedContents(
	ctx context.Context,
	after models.ContentCursor,
	limit int,
) ([]*models.Content, error) {
	args := m.Called(ctx, after, limit)
	contents, _ := args.Get(0).([]*models.Content)
	return contents, args.Error(1)
}

func (m *StorageMock) CountContents(ctx context.Context) (int64, error) {
	if m.OnCountContents != nil {
		return m.OnCountContents(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
