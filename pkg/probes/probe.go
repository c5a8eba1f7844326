// Package probes decides when a dependency is ready to accept work.
package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/localai/pkg/runner"
)

// Kind names a readiness probe implementation.
type Kind string

const (
	KindHealth   Kind = "health"
	KindPostgres Kind = "postgres"
	KindTCP      Kind = "tcp"
	KindDelay    Kind = "delay"
)

// ProbeResult represents the result of a readiness probe
type ProbeResult struct {
	Success  bool
	Message  string
	Duration time.Duration
}

// Prober defines the interface for readiness probes
type Prober interface {
	// Execute runs the probe once and returns the result
	Execute(ctx context.Context) ProbeResult
}

// Config selects and parameterizes the readiness probe.
type Config struct {
	Kind            Kind          `yaml:"kind" mapstructure:"kind"`
	Container       string        `yaml:"container,omitempty" mapstructure:"container"`
	Address         string        `yaml:"address,omitempty" mapstructure:"address"`
	User            string        `yaml:"user,omitempty" mapstructure:"user"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	InitialInterval time.Duration `yaml:"initial_interval" mapstructure:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" mapstructure:"max_interval"`
	Delay           time.Duration `yaml:"delay,omitempty" mapstructure:"delay"`
}

// DefaultConfig waits on the database container's health check.
func DefaultConfig() Config {
	return Config{
		Kind:            KindHealth,
		Container:       "supabase-db",
		Address:         "localhost:5432",
		User:            "postgres",
		Timeout:         3 * time.Minute,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Delay:           10 * time.Second,
	}
}

// Deps carries what probes need from the rest of the stack.
type Deps struct {
	Engine   runner.Engine
	Password string
	Database string
}

// NewProber creates a probe implementation based on the configured kind
func NewProber(cfg Config, deps Deps) (Prober, error) {
	switch cfg.Kind {
	case KindHealth:
		if deps.Engine == nil {
			return nil, fmt.Errorf("health probe requires a container engine")
		}
		return &HealthProber{Engine: deps.Engine, Container: cfg.Container}, nil
	case KindTCP:
		return &TCPProber{Address: cfg.Address}, nil
	case KindPostgres:
		return &PostgresProber{
			Address:  cfg.Address,
			User:     cfg.User,
			Password: deps.Password,
			Database: deps.Database,
		}, nil
	case KindDelay:
		return &DelayProber{Delay: cfg.Delay}, nil
	default:
		return nil, fmt.Errorf("unknown probe type: %s", cfg.Kind)
	}
}

// HealthProber succeeds when a container reports itself healthy, or is
// running without a health check.
type HealthProber struct {
	Engine    runner.Engine
	Container string
}

// Execute implements the Prober interface for container health
func (p *HealthProber) Execute(ctx context.Context) ProbeResult {
	start := time.Now()

	c, err := p.Engine.Inspect(ctx, p.Container)
	if err != nil {
		return ProbeResult{
			Message:  fmt.Sprintf("Health check failed: %v", err),
			Duration: time.Since(start),
		}
	}

	switch {
	case c.State != runner.StateRunning:
		return ProbeResult{
			Message:  fmt.Sprintf("Container %s is %s", p.Container, c.State),
			Duration: time.Since(start),
		}
	case c.Health == runner.HealthHealthy || c.Health == runner.HealthNone:
		return ProbeResult{
			Success:  true,
			Message:  fmt.Sprintf("Container %s is ready", p.Container),
			Duration: time.Since(start),
		}
	default:
		return ProbeResult{
			Message:  fmt.Sprintf("Container %s health is %s", p.Container, c.Health),
			Duration: time.Since(start),
		}
	}
}

// DelayProber reproduces a fixed settle delay: it sleeps once, then succeeds.
type DelayProber struct {
	Delay time.Duration
}

// Execute implements the Prober interface for a fixed delay
func (p *DelayProber) Execute(ctx context.Context) ProbeResult {
	start := time.Now()
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ProbeResult{Message: ctx.Err().Error(), Duration: time.Since(start)}
	case <-timer.C:
		return ProbeResult{Success: true, Message: fmt.Sprintf("Waited %s", p.Delay), Duration: time.Since(start)}
	}
}
