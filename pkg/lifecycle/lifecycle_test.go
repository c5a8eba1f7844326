package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/localai/pkg/compose"
	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/probes"
	"github.com/rzbill/localai/pkg/runner"
	"github.com/rzbill/localai/pkg/runner/process"
)

// scriptedConfirmer answers from a list; an empty answer takes the default.
type scriptedConfirmer struct {
	answers   []string
	questions []string
}

func (s *scriptedConfirmer) Confirm(question string, def bool) (bool, error) {
	s.questions = append(s.questions, question)
	if len(s.answers) == 0 {
		return def, nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	switch a {
	case "":
		return def, nil
	case "y":
		return true, nil
	default:
		return false, nil
	}
}

type staticProber struct {
	result probes.ProbeResult
	calls  int
}

func (p *staticProber) Execute(ctx context.Context) probes.ProbeResult {
	p.calls++
	return p.result
}

func testOptions() Options {
	return Options{
		Project:      "localai",
		ComposeFiles: []string{"docker-compose.yml"},
		CoreFiles:    []string{"supabase/docker/docker-compose.yml"},
		EnvFile:      ".env",
		Readiness: probes.Config{
			Kind:            probes.KindHealth,
			Timeout:         30 * time.Millisecond,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	}
}

func newTestController(fake *process.FakeExecutor, prober probes.Prober) *Controller {
	logger := log.NewTestLogger()
	client := compose.NewClient(fake, "localai", "", compose.WithLogger(logger))
	return NewController(client, runner.NewFakeEngine(), prober, testOptions(), logger)
}

func defaultPlan() Plan {
	catalog := DefaultCatalog()
	return Plan{Catalog: catalog, Selection: DefaultSelection(catalog), Profile: ProfileCPU}
}

func TestMachine(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateNotStarted, m.State())

	assert.Error(t, m.To(StateRunning))
	require.NoError(t, m.To(StateStoppingExisting))
	assert.Error(t, m.To(StateFailed))
	require.NoError(t, m.To(StateStartingCore))
	require.NoError(t, m.To(StateFailed))
	assert.Error(t, m.To(StateStartingSelected))

	history := m.History()
	require.Len(t, history, 3)
	assert.Equal(t, StateNotStarted, history[0].From)
	assert.Equal(t, StateFailed, history[2].To)
}

func TestSelectComponents_AllDefaults(t *testing.T) {
	catalog := DefaultCatalog()
	confirmer := &scriptedConfirmer{answers: []string{"", "", "", "", "", "", "", "", ""}}

	sel, err := SelectComponents(catalog, nil, confirmer)
	require.NoError(t, err)
	assert.Len(t, confirmer.questions, len(catalog))
	assert.Equal(t, DefaultSelection(catalog), sel)
	assert.Equal(t, []string{"flowise", "n8n", "ollama", "open-webui", "qdrant", "searxng"}, sel.Enabled())
}

func TestSelectComponents_Overrides(t *testing.T) {
	catalog := DefaultCatalog()
	confirmer := &scriptedConfirmer{answers: []string{"n", "", "", "", "", "", "y"}}

	sel, err := SelectComponents(catalog, Selection{"neo4j": true, "unknown": true}, confirmer)
	require.NoError(t, err)
	assert.False(t, sel["n8n"])
	assert.True(t, sel["caddy"])
	assert.True(t, sel["neo4j"])
	_, hasUnknown := sel["unknown"]
	assert.False(t, hasUnknown)
}

func TestSelectComponents_NoPrompt(t *testing.T) {
	catalog := DefaultCatalog()
	sel, err := SelectComponents(catalog, Selection{"caddy": true}, nil)
	require.NoError(t, err)
	assert.True(t, sel["caddy"])
	assert.True(t, sel["n8n"])
}

func TestServices_PerProfile(t *testing.T) {
	catalog := DefaultCatalog()
	sel := Selection{"ollama": true, "qdrant": true}

	assert.Equal(t, []string{"qdrant", "ollama-cpu", "ollama-pull-llama-cpu"}, Services(catalog, sel, ProfileCPU))
	assert.Equal(t, []string{"qdrant", "ollama-gpu", "ollama-pull-llama-gpu"}, Services(catalog, sel, ProfileGPUNvidia))
	assert.Equal(t, []string{"qdrant"}, Services(catalog, sel, ProfileNone))
}

func TestPlan_ProfilesAndExtras(t *testing.T) {
	plan := Plan{
		Catalog:       DefaultCatalog(),
		Selection:     Selection{"qdrant": true},
		Profile:       ProfileNone,
		ExtraProfiles: []string{"cloudflared"},
		ExtraServices: []string{"cloudflared", "qdrant"},
	}
	assert.Equal(t, []string{"cloudflared"}, plan.Profiles())
	assert.Equal(t, []string{"qdrant", "cloudflared"}, plan.Services())
}

func TestValidateProfile(t *testing.T) {
	for _, p := range Profiles {
		assert.NoError(t, ValidateProfile(p))
	}
	assert.Error(t, ValidateProfile("gpu"))
}

func TestStopAll_TwiceSucceeds(t *testing.T) {
	fake := process.NewFakeExecutor()
	c := newTestController(fake, nil)

	require.NoError(t, c.StopAll(context.Background()))

	fake.On("docker compose -p localai -f", "", &process.ExitError{Command: "docker compose down", ExitCode: 1})
	require.NoError(t, c.StopAll(context.Background()))

	assert.Equal(t, []string{
		"docker compose version",
		"docker compose -p localai -f docker-compose.yml -f supabase/docker/docker-compose.yml down",
		"docker compose -p localai -f docker-compose.yml -f supabase/docker/docker-compose.yml down",
	}, fake.Lines())
}

func TestStopAll_Cancelled(t *testing.T) {
	c := newTestController(process.NewFakeExecutor(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.StopAll(ctx), context.Canceled)
}

func TestStart_Sequence(t *testing.T) {
	fake := process.NewFakeExecutor()
	prober := &staticProber{result: probes.ProbeResult{Success: true}}
	c := newTestController(fake, prober)

	plan := defaultPlan()
	plan.ExtraProfiles = []string{"cloudflared"}
	plan.ExtraServices = []string{"cloudflared"}
	require.NoError(t, c.Start(context.Background(), plan))

	assert.Equal(t, StateRunning, c.State())
	assert.Equal(t, 1, prober.calls)
	assert.Equal(t, []string{
		"docker compose version",
		"docker compose -p localai -f docker-compose.yml -f supabase/docker/docker-compose.yml down",
		"docker compose -p localai -f supabase/docker/docker-compose.yml up -d",
		"docker compose -p localai --profile cpu --profile cloudflared -f docker-compose.yml --env-file .env up -d " +
			"n8n-import n8n open-webui flowise qdrant searxng redis ollama-cpu ollama-pull-llama-cpu cloudflared",
	}, fake.Lines())

	var states []State
	for _, tr := range c.Machine().History() {
		states = append(states, tr.To)
	}
	assert.Equal(t, []State{StateStoppingExisting, StateStartingCore, StateStartingSelected, StateRunning}, states)
}

func TestStart_CoreFailureIsWarning(t *testing.T) {
	fake := process.NewFakeExecutor().
		On("docker compose -p localai -f supabase", "", &process.ExitError{Command: "up", ExitCode: 1})
	c := newTestController(fake, nil)

	require.NoError(t, c.Start(context.Background(), defaultPlan()))
	assert.Equal(t, StateRunning, c.State())
	assert.Len(t, fake.Commands, 4)
}

func TestStart_CoreNotReady(t *testing.T) {
	fake := process.NewFakeExecutor()
	prober := &staticProber{result: probes.ProbeResult{Message: "starting"}}
	c := newTestController(fake, prober)

	err := c.Start(context.Background(), defaultPlan())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCoreNotReady)
	assert.Equal(t, StateFailed, c.State())
	assert.Len(t, fake.Commands, 3)
}

func TestStart_SelectedFailureIsFatal(t *testing.T) {
	fake := process.NewFakeExecutor().
		On("docker compose -p localai --profile", "", errors.New("pull failed"))
	c := newTestController(fake, nil)

	err := c.Start(context.Background(), defaultPlan())
	assert.ErrorIs(t, err, ErrStartSelected)
	assert.Equal(t, StateFailed, c.State())
}

func TestStart_NothingSelected(t *testing.T) {
	fake := process.NewFakeExecutor()
	c := newTestController(fake, nil)

	plan := Plan{Catalog: DefaultCatalog(), Selection: Selection{}, Profile: ProfileNone}
	require.NoError(t, c.Start(context.Background(), plan))
	assert.Len(t, fake.Commands, 3)
}

func TestStart_RejectsBadProfileWithoutSideEffects(t *testing.T) {
	fake := process.NewFakeExecutor()
	c := newTestController(fake, nil)

	plan := defaultPlan()
	plan.Profile = "tpu"
	assert.Error(t, c.Start(context.Background(), plan))
	assert.Empty(t, fake.Commands)
	assert.Equal(t, StateNotStarted, c.State())
}

func TestStart_OnlyOnce(t *testing.T) {
	c := newTestController(process.NewFakeExecutor(), nil)
	require.NoError(t, c.Start(context.Background(), defaultPlan()))
	assert.Error(t, c.Start(context.Background(), defaultPlan()))
}

func TestStatus_SingleUse(t *testing.T) {
	engine := runner.NewFakeEngine()
	engine.AddContainer("localai", runner.Container{Name: "n8n", State: runner.StateRunning})
	engine.AddContainer("localai", runner.Container{Name: "qdrant", State: runner.StateExited})
	engine.AddContainer("elsewhere", runner.Container{Name: "other", State: runner.StateRunning})

	c := NewController(nil, engine, nil, testOptions(), log.NewTestLogger())
	seq, err := c.Status(context.Background())
	require.NoError(t, err)

	var names []string
	var states []runner.ContainerState
	for ct := range seq {
		names = append(names, ct.Name)
		states = append(states, ct.State)
	}
	assert.Equal(t, []string{"n8n", "qdrant"}, names)
	assert.Equal(t, []runner.ContainerState{runner.StateRunning, runner.StateExited}, states)

	count := 0
	for range seq {
		count++
	}
	assert.Zero(t, count)
}

func TestStatus_RequiresEngine(t *testing.T) {
	c := NewController(nil, nil, nil, testOptions(), log.NewTestLogger())
	_, err := c.Status(context.Background())
	assert.Error(t, err)
}
