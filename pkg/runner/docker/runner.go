// Package docker implements runner.Engine with the Docker Engine API.
package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	imageTypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/runner"
)

// DockerConfig holds Docker client configuration options
type DockerConfig struct {
	// APIVersion is the Docker API version to use
	// If empty, auto-negotiation will be used
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`

	// FallbackAPIVersion is used when auto-negotiation fails
	FallbackAPIVersion string `yaml:"fallback_api_version" mapstructure:"fallback_api_version"`

	// Timeout for API version negotiation in seconds
	NegotiationTimeoutSeconds int `yaml:"negotiation_timeout_seconds" mapstructure:"negotiation_timeout_seconds"`
}

// DefaultDockerConfig returns the default Docker configuration
func DefaultDockerConfig() *DockerConfig {
	return &DockerConfig{
		APIVersion:                "",
		FallbackAPIVersion:        "1.43",
		NegotiationTimeoutSeconds: 3,
	}
}

// Validate that DockerEngine implements the runner.Engine interface
var _ runner.Engine = &DockerEngine{}

// DockerEngine implements runner.Engine for a local Docker daemon.
type DockerEngine struct {
	client *client.Client
	logger log.Logger
	config *DockerConfig
}

// NewDockerEngine creates a DockerEngine with the default configuration.
func NewDockerEngine(logger log.Logger) (*DockerEngine, error) {
	return NewDockerEngineWithConfig(logger, DefaultDockerConfig())
}

// NewDockerEngineWithConfig creates a DockerEngine with specific configuration.
func NewDockerEngineWithConfig(logger log.Logger, config *DockerConfig) (*DockerEngine, error) {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	logger = logger.WithComponent("docker")

	if config == nil {
		config = DefaultDockerConfig()
	}

	client, err := createClientWithVersionHandling(logger, config)
	if err != nil {
		return nil, err
	}

	return &DockerEngine{
		client: client,
		logger: logger,
		config: config,
	}, nil
}

// createClientWithVersionHandling creates a Docker client with appropriate API version handling
func createClientWithVersionHandling(logger log.Logger, config *DockerConfig) (*client.Client, error) {
	if config.APIVersion != "" {
		logger.Debug("Using specified Docker API version", log.Str("api_version", config.APIVersion))

		dockerClient, err := client.NewClientWithOpts(
			client.FromEnv,
			client.WithVersion(config.APIVersion),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Docker client with version %s: %w", config.APIVersion, err)
		}
		return dockerClient, nil
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Negotiate the API version with a bounded wait
	negotiationTimeout := time.Duration(config.NegotiationTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), negotiationTimeout)
	defer cancel()

	dockerClient.NegotiateAPIVersion(ctx)
	clientVersion := dockerClient.ClientVersion()
	logger.Debug("Using negotiated Docker API version", log.Str("api_version", clientVersion))

	if err := verifyClientCompatibility(dockerClient, clientVersion, config.FallbackAPIVersion, logger); err != nil {
		return nil, err
	}

	return dockerClient, nil
}

// verifyClientCompatibility checks if the Docker client is compatible with the server
// and falls back to a compatible version if needed
func verifyClientCompatibility(dockerClient *client.Client, clientVersion, fallbackVersion string, logger log.Logger) error {
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer pingCancel()

	_, err := dockerClient.Ping(pingCtx)

	if err != nil && strings.Contains(err.Error(), "client version") &&
		strings.Contains(err.Error(), "too new") {
		logger.Warn("Docker API version mismatch, falling back to compatibility version",
			log.Str("current_version", clientVersion),
			log.Str("fallback_version", fallbackVersion),
			log.Err(err))

		newClient, err := client.NewClientWithOpts(
			client.FromEnv,
			client.WithVersion(fallbackVersion),
		)
		if err != nil {
			return fmt.Errorf("failed to create Docker client with fallback version %s: %w",
				fallbackVersion, err)
		}

		*dockerClient = *newClient
	} else if err != nil {
		// Not fatal here; the first real call reports it
		logger.Debug("Docker ping error (continuing anyway)", log.Err(err))
	}

	return nil
}

func projectFilter(project string) filters.Args {
	return filters.NewArgs(filters.Arg("label", runner.ProjectLabel+"="+project))
}

func notFound(kind, name string, err error) error {
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %s %s", runner.ErrNotFound, kind, name)
	}
	return fmt.Errorf("failed to remove %s %s: %w", kind, name, err)
}

// Ping checks that the daemon answers.
func (r *DockerEngine) Ping(ctx context.Context) error {
	if _, err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}

// ListContainers lists every container carrying the project's compose label.
func (r *DockerEngine) ListContainers(ctx context.Context, project string) ([]runner.Container, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: projectFilter(project),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	out := make([]runner.Container, 0, len(containers))
	for _, c := range containers {
		name := c.ID
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		ports := make([]string, 0, len(c.Ports))
		for _, p := range c.Ports {
			if p.PublicPort == 0 {
				continue
			}
			port, err := nat.NewPort(p.Type, fmt.Sprintf("%d", p.PrivatePort))
			if err != nil {
				continue
			}
			ports = append(ports, fmt.Sprintf("%d->%s", p.PublicPort, port))
		}
		sort.Strings(ports)

		out = append(out, runner.Container{
			ID:      c.ID,
			Name:    name,
			Service: c.Labels[runner.ServiceLabel],
			Image:   c.Image,
			State:   runner.ContainerState(c.State),
			Status:  c.Status,
			Health:  healthFromStatus(c.Status),
			Ports:   ports,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// healthFromStatus reads the health suffix docker appends to the status
// line, e.g. "Up 2 minutes (healthy)".
func healthFromStatus(status string) runner.Health {
	switch {
	case strings.Contains(status, "(healthy)"):
		return runner.HealthHealthy
	case strings.Contains(status, "(unhealthy)"):
		return runner.HealthUnhealthy
	case strings.Contains(status, "(health: starting)"):
		return runner.HealthStarting
	default:
		return runner.HealthNone
	}
}

// Inspect returns the state and health of one container.
func (r *DockerEngine) Inspect(ctx context.Context, name string) (runner.Container, error) {
	info, err := r.client.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return runner.Container{}, fmt.Errorf("%w: container %s", runner.ErrNotFound, name)
		}
		return runner.Container{}, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	c := runner.Container{
		ID:     info.ID,
		Name:   strings.TrimPrefix(info.Name, "/"),
		Health: runner.HealthNone,
	}
	if info.Config != nil {
		c.Image = info.Config.Image
		c.Service = info.Config.Labels[runner.ServiceLabel]
	}
	if info.State != nil {
		c.State = runner.ContainerState(info.State.Status)
		c.Status = info.State.Status
		if info.State.Health != nil && info.State.Health.Status != "" {
			c.Health = runner.Health(info.State.Health.Status)
		}
	}
	return c, nil
}

// RemoveContainers force-removes every container of the project.
func (r *DockerEngine) RemoveContainers(ctx context.Context, project string) ([]string, error) {
	containers, err := r.ListContainers(ctx, project)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []string
	for _, c := range containers {
		if err := r.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			if client.IsErrNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Sprintf("%s: %v", c.Name, err))
			continue
		}
		r.logger.Debug("Removed container", log.Str("name", c.Name))
		removed = append(removed, c.Name)
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("failed to remove containers: %s", strings.Join(errs, "; "))
	}
	return removed, nil
}

// RemoveVolume removes a named volume.
func (r *DockerEngine) RemoveVolume(ctx context.Context, name string) error {
	if err := r.client.VolumeRemove(ctx, name, false); err != nil {
		return notFound("volume", name, err)
	}
	return nil
}

// PruneVolumes removes unused volumes of the project, including named ones.
func (r *DockerEngine) PruneVolumes(ctx context.Context, project string) (runner.PruneReport, error) {
	args := projectFilter(project)
	args.Add("all", "true")
	report, err := r.client.VolumesPrune(ctx, args)
	if err != nil {
		return runner.PruneReport{}, fmt.Errorf("failed to prune volumes: %w", err)
	}
	return runner.PruneReport{Deleted: report.VolumesDeleted, SpaceReclaimed: report.SpaceReclaimed}, nil
}

// RemoveImage removes an image by reference.
func (r *DockerEngine) RemoveImage(ctx context.Context, ref string) error {
	if _, err := r.client.ImageRemove(ctx, ref, imageTypes.RemoveOptions{Force: true, PruneChildren: true}); err != nil {
		return notFound("image", ref, err)
	}
	return nil
}

// PruneImages removes dangling images.
func (r *DockerEngine) PruneImages(ctx context.Context) (runner.PruneReport, error) {
	report, err := r.client.ImagesPrune(ctx, filters.NewArgs(filters.Arg("dangling", "true")))
	if err != nil {
		return runner.PruneReport{}, fmt.Errorf("failed to prune images: %w", err)
	}
	out := runner.PruneReport{SpaceReclaimed: report.SpaceReclaimed}
	for _, d := range report.ImagesDeleted {
		if d.Deleted != "" {
			out.Deleted = append(out.Deleted, d.Deleted)
		} else if d.Untagged != "" {
			out.Deleted = append(out.Deleted, d.Untagged)
		}
	}
	return out, nil
}

// PruneNetworks removes unused networks.
func (r *DockerEngine) PruneNetworks(ctx context.Context) (runner.PruneReport, error) {
	report, err := r.client.NetworksPrune(ctx, filters.NewArgs())
	if err != nil {
		return runner.PruneReport{}, fmt.Errorf("failed to prune networks: %w", err)
	}
	return runner.PruneReport{Deleted: report.NetworksDeleted}, nil
}

// PruneContainers removes stopped containers.
func (r *DockerEngine) PruneContainers(ctx context.Context) (runner.PruneReport, error) {
	report, err := r.client.ContainersPrune(ctx, filters.NewArgs())
	if err != nil {
		return runner.PruneReport{}, fmt.Errorf("failed to prune containers: %w", err)
	}
	return runner.PruneReport{Deleted: report.ContainersDeleted, SpaceReclaimed: report.SpaceReclaimed}, nil
}

// PruneBuildCache removes all build cache entries.
func (r *DockerEngine) PruneBuildCache(ctx context.Context) (runner.PruneReport, error) {
	report, err := r.client.BuildCachePrune(ctx, build.CachePruneOptions{All: true})
	if err != nil {
		return runner.PruneReport{}, fmt.Errorf("failed to prune build cache: %w", err)
	}
	return runner.PruneReport{Deleted: report.CachesDeleted, SpaceReclaimed: report.SpaceReclaimed}, nil
}

// Close releases the client connection.
func (r *DockerEngine) Close() error {
	return r.client.Close()
}
