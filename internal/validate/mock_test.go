package validate

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bizdir/internal/directory"
)

// mockStore implements directory.Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBusiness(ctx context.Context, b *directory.Business) error {
	args := m.Called(ctx, b)
	if b.ID == "" {
		b.ID = "new-id"
	}
	return args.Error(0)
}

func (m *mockStore) UpdateBusiness(ctx context.Context, b *directory.Business) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBusiness(ctx context.Context, id string) (*directory.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directory.Business), args.Error(1)
}

func (m *mockStore) ListByLocation(ctx context.Context, locationID string) ([]directory.Business, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.Business), args.Error(1)
}

func (m *mockStore) ListAddressClusters(ctx context.Context, minSize int) ([]directory.AddressCluster, error) {
	args := m.Called(ctx, minSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.AddressCluster), args.Error(1)
}

func (m *mockStore) AnnotateBusinesses(ctx context.Context, ids []string, note string) (int64, error) {
	args := m.Called(ctx, ids, note)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
