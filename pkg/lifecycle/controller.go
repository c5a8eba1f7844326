package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/rzbill/localai/pkg/compose"
	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/probes"
	"github.com/rzbill/localai/pkg/runner"
)

var (
	// ErrCoreNotReady is returned when the core database never became ready.
	ErrCoreNotReady = errors.New("core component not ready")

	// ErrStartSelected is returned when the batched start of selected components fails.
	ErrStartSelected = errors.New("failed to start selected components")
)

// Composer is the compose surface the controller drives.
type Composer interface {
	Up(ctx context.Context, opts compose.UpOptions) error
	Down(ctx context.Context, opts compose.DownOptions) error
}

// Options configures a Controller.
type Options struct {
	Project string
	// ComposeFiles hold the optional components.
	ComposeFiles []string
	// CoreFiles hold the core database subsystem.
	CoreFiles []string
	// CoreServices limits the core start; empty starts every core service.
	CoreServices []string
	// EnvFile is passed to the batched start.
	EnvFile string
	// Readiness is the wait applied between core and selected components.
	Readiness probes.Config
}

// Plan is what a single Start brings up.
type Plan struct {
	Catalog   []Component
	Selection Selection
	Profile   string
	// ExtraProfiles are appended after the hardware profile, e.g. cloudflared.
	ExtraProfiles []string
	// ExtraServices are started alongside the selected components.
	ExtraServices []string
}

// Profiles returns the compose profiles for the batched start.
func (p Plan) Profiles() []string {
	var out []string
	if p.Profile != "" && p.Profile != ProfileNone {
		out = append(out, p.Profile)
	}
	return append(out, p.ExtraProfiles...)
}

// Services returns the compose services for the batched start.
func (p Plan) Services() []string {
	services := Services(p.Catalog, p.Selection, p.Profile)
	seen := make(map[string]bool, len(services))
	for _, s := range services {
		seen[s] = true
	}
	for _, s := range p.ExtraServices {
		if !seen[s] {
			seen[s] = true
			services = append(services, s)
		}
	}
	return services
}

// Controller brings the stack's containers up and down.
type Controller struct {
	compose Composer
	engine  runner.Engine
	prober  probes.Prober
	opts    Options
	machine *Machine
	logger  log.Logger
}

// NewController creates a Controller. engine may be nil when Status is not
// used; prober may be nil to skip the readiness wait.
func NewController(c Composer, engine runner.Engine, prober probes.Prober, opts Options, logger log.Logger) *Controller {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Controller{
		compose: c,
		engine:  engine,
		prober:  prober,
		opts:    opts,
		machine: NewMachine(),
		logger:  logger.WithComponent("lifecycle"),
	}
}

// State returns the progress of the current start.
func (c *Controller) State() State { return c.machine.State() }

// Machine exposes the state machine for reporting.
func (c *Controller) Machine() *Machine { return c.machine }

func (c *Controller) allFiles() []string {
	return append(append([]string{}, c.opts.ComposeFiles...), c.opts.CoreFiles...)
}

// StopAll brings down every container of the project. Nothing running is
// success, and so is any failure of compose itself; only cancellation is an
// error.
func (c *Controller) StopAll(ctx context.Context) error {
	err := c.compose.Down(ctx, compose.DownOptions{Files: c.allFiles()})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	c.logger.Warn("No existing containers to stop", log.Err(err))
	return nil
}

func (c *Controller) fail(err error) error {
	if tErr := c.machine.To(StateFailed); tErr != nil {
		c.logger.Debug("State change rejected", log.Err(tErr))
	}
	return err
}

// Start stops whatever runs under the project, starts the core component,
// waits for it, then starts the selected components in one batch. A core
// start failure is downgraded to a warning; the readiness timeout and the
// batched start failure are fatal.
func (c *Controller) Start(ctx context.Context, plan Plan) error {
	if err := ValidateProfile(plan.Profile); err != nil {
		return err
	}

	if err := c.machine.To(StateStoppingExisting); err != nil {
		return err
	}
	if err := c.StopAll(ctx); err != nil {
		return err
	}

	if err := c.machine.To(StateStartingCore); err != nil {
		return err
	}
	err := c.compose.Up(ctx, compose.UpOptions{Files: c.opts.CoreFiles, Services: c.opts.CoreServices})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.fail(ctxErr)
		}
		c.logger.Warn("Core component failed to start, continuing", log.Err(err))
	}

	if c.prober != nil {
		c.logger.Info("Waiting for core component", log.Str("probe", string(c.opts.Readiness.Kind)))
		if err := probes.WaitReady(ctx, c.prober, c.opts.Readiness, c.logger); err != nil {
			if errors.Is(err, probes.ErrNotReady) {
				return c.fail(fmt.Errorf("%w: %v", ErrCoreNotReady, err))
			}
			return c.fail(err)
		}
	}

	if err := c.machine.To(StateStartingSelected); err != nil {
		return err
	}
	services := plan.Services()
	if len(services) == 0 {
		c.logger.Info("No optional components selected")
	} else {
		err := c.compose.Up(ctx, compose.UpOptions{
			Files:    c.opts.ComposeFiles,
			Profiles: plan.Profiles(),
			Services: services,
			EnvFile:  c.opts.EnvFile,
		})
		if err != nil {
			return c.fail(fmt.Errorf("%w: %v", ErrStartSelected, err))
		}
	}

	return c.machine.To(StateRunning)
}

// Status queries the project's containers once and returns them as a
// single-use sequence. Ranging over it a second time yields nothing.
func (c *Controller) Status(ctx context.Context) (iter.Seq[runner.Container], error) {
	if c.engine == nil {
		return nil, errors.New("status requires a container engine")
	}
	containers, err := c.engine.ListContainers(ctx, c.opts.Project)
	if err != nil {
		return nil, err
	}

	var used atomic.Bool
	return func(yield func(runner.Container) bool) {
		if used.Swap(true) {
			return
		}
		for _, ct := range containers {
			if !yield(ct) {
				return
			}
		}
	}, nil
}
