package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FakeEngine is an in-memory Engine for tests.
type FakeEngine struct {
	mu         sync.Mutex
	containers map[string]Container
	projects   map[string]string
	volumes    map[string]bool
	images     map[string]bool

	// PingErr, when set, is returned by Ping.
	PingErr error
	// Calls records method names in call order.
	Calls []string
}

var _ Engine = (*FakeEngine)(nil)

// NewFakeEngine creates an empty FakeEngine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		containers: make(map[string]Container),
		projects:   make(map[string]string),
		volumes:    make(map[string]bool),
		images:     make(map[string]bool),
	}
}

// AddContainer registers a container under a compose project.
func (f *FakeEngine) AddContainer(project string, c Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = fmt.Sprintf("id-%s", c.Name)
	}
	if c.Health == "" {
		c.Health = HealthNone
	}
	f.containers[c.Name] = c
	f.projects[c.Name] = project
}

// SetHealth updates a registered container's health.
func (f *FakeEngine) SetHealth(name string, h Health) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[name]
	c.Health = h
	f.containers[name] = c
}

// AddVolume registers a named volume.
func (f *FakeEngine) AddVolume(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[name] = true
}

// AddImage registers an image reference.
func (f *FakeEngine) AddImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = true
}

// HasVolume reports whether the named volume is still present.
func (f *FakeEngine) HasVolume(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volumes[name]
}

// HasImage reports whether the image is still present.
func (f *FakeEngine) HasImage(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref]
}

func (f *FakeEngine) record(name string) {
	f.Calls = append(f.Calls, name)
}

func (f *FakeEngine) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Ping")
	return f.PingErr
}

func (f *FakeEngine) ListContainers(ctx context.Context, project string) ([]Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListContainers")
	var out []Container
	for name, c := range f.containers {
		if f.projects[name] == project {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FakeEngine) Inspect(ctx context.Context, name string) (Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Inspect")
	c, ok := f.containers[name]
	if !ok {
		return Container{}, fmt.Errorf("%w: container %s", ErrNotFound, name)
	}
	return c, nil
}

func (f *FakeEngine) RemoveContainers(ctx context.Context, project string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveContainers")
	var removed []string
	for name := range f.containers {
		if f.projects[name] == project {
			delete(f.containers, name)
			delete(f.projects, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func (f *FakeEngine) RemoveVolume(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveVolume")
	if !f.volumes[name] {
		return fmt.Errorf("%w: volume %s", ErrNotFound, name)
	}
	delete(f.volumes, name)
	return nil
}

func (f *FakeEngine) PruneVolumes(ctx context.Context, project string) (PruneReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PruneVolumes")
	return PruneReport{}, nil
}

func (f *FakeEngine) RemoveImage(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveImage")
	if !f.images[ref] {
		return fmt.Errorf("%w: image %s", ErrNotFound, ref)
	}
	delete(f.images, ref)
	return nil
}

func (f *FakeEngine) PruneImages(ctx context.Context) (PruneReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PruneImages")
	return PruneReport{}, nil
}

func (f *FakeEngine) PruneNetworks(ctx context.Context) (PruneReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PruneNetworks")
	return PruneReport{}, nil
}

func (f *FakeEngine) PruneContainers(ctx context.Context) (PruneReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PruneContainers")
	return PruneReport{}, nil
}

func (f *FakeEngine) PruneBuildCache(ctx context.Context) (PruneReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PruneBuildCache")
	return PruneReport{}, nil
}

func (f *FakeEngine) Close() error { return nil }
