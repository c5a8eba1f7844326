// Package runner describes the container engine operations the stack needs
// beyond what the compose CLI offers.
package runner

import (
	"context"
	"errors"
)

// ProjectLabel is the label compose sets on every resource it creates.
const ProjectLabel = "com.docker.compose.project"

// ServiceLabel is the label compose sets to the service name.
const ServiceLabel = "com.docker.compose.service"

// ErrNotFound is returned when a named resource does not exist.
var ErrNotFound = errors.New("resource not found")

// ContainerState is the engine-reported lifecycle state of a container.
type ContainerState string

const (
	StateCreated    ContainerState = "created"
	StateRunning    ContainerState = "running"
	StateRestarting ContainerState = "restarting"
	StatePaused     ContainerState = "paused"
	StateExited     ContainerState = "exited"
	StateDead       ContainerState = "dead"
)

// Health is the result of a container's own health check.
type Health string

const (
	HealthNone      Health = "none"
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

// Container is a point-in-time view of one container.
type Container struct {
	ID      string
	Name    string
	Service string
	Image   string
	State   ContainerState
	Status  string
	Health  Health
	Ports   []string
}

// PruneReport summarizes a prune call.
type PruneReport struct {
	Deleted        []string
	SpaceReclaimed uint64
}

// Engine is the subset of the container engine API used for status queries,
// readiness checks and teardown.
type Engine interface {
	// Ping checks that the engine answers.
	Ping(ctx context.Context) error

	// ListContainers lists all containers of a compose project, running or not.
	ListContainers(ctx context.Context, project string) ([]Container, error)

	// Inspect returns the state and health of one container by name or ID.
	Inspect(ctx context.Context, name string) (Container, error)

	// RemoveContainers force-removes every container of a compose project and
	// returns the names removed.
	RemoveContainers(ctx context.Context, project string) ([]string, error)

	// RemoveVolume removes a named volume.
	RemoveVolume(ctx context.Context, name string) error

	// PruneVolumes removes unused volumes of a compose project, named or anonymous.
	PruneVolumes(ctx context.Context, project string) (PruneReport, error)

	// RemoveImage removes an image by reference.
	RemoveImage(ctx context.Context, ref string) error

	// PruneImages removes dangling images.
	PruneImages(ctx context.Context) (PruneReport, error)

	// PruneNetworks removes unused networks.
	PruneNetworks(ctx context.Context) (PruneReport, error)

	// PruneContainers removes stopped containers.
	PruneContainers(ctx context.Context) (PruneReport, error)

	// PruneBuildCache removes the build cache.
	PruneBuildCache(ctx context.Context) (PruneReport, error)

	// Close releases the engine connection.
	Close() error
}
