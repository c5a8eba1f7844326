package runner

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEngine is a testify mock of Engine.
type MockEngine struct {
	mock.Mock
}

var _ Engine = (*MockEngine)(nil)

func (m *MockEngine) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEngine) ListContainers(ctx context.Context, project string) ([]Container, error) {
	args := m.Called(ctx, project)
	containers, _ := args.Get(0).([]Container)
	return containers, args.Error(1)
}

func (m *MockEngine) Inspect(ctx context.Context, name string) (Container, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(Container)
	return c, args.Error(1)
}

func (m *MockEngine) RemoveContainers(ctx context.Context, project string) ([]string, error) {
	args := m.Called(ctx, project)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockEngine) RemoveVolume(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockEngine) PruneVolumes(ctx context.Context, project string) (PruneReport, error) {
	args := m.Called(ctx, project)
	return args.Get(0).(PruneReport), args.Error(1)
}

func (m *MockEngine) RemoveImage(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockEngine) PruneImages(ctx context.Context) (PruneReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(PruneReport), args.Error(1)
}

func (m *MockEngine) PruneNetworks(ctx context.Context) (PruneReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(PruneReport), args.Error(1)
}

func (m *MockEngine) PruneContainers(ctx context.Context) (PruneReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(PruneReport), args.Error(1)
}

func (m *MockEngine) PruneBuildCache(ctx context.Context) (PruneReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(PruneReport), args.Error(1)
}

func (m *MockEngine) Close() error {
	return m.Called().Error(0)
}
