package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/runner/process"
)

func TestUp_UsesPluginAndRendersArgs(t *testing.T) {
	fake := process.NewFakeExecutor()
	c := NewClient(fake, "localai", "/work", WithLogger(log.NewTestLogger()))

	err := c.Up(context.Background(), UpOptions{
		Files:    []string{"docker-compose.yml"},
		Profiles: []string{"cpu", "cloudflared"},
		Services: []string{"n8n", "qdrant"},
		EnvFile:  ".env",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docker compose version",
		"docker compose -p localai --profile cpu --profile cloudflared -f docker-compose.yml --env-file .env up -d n8n qdrant",
	}, fake.Lines())
	assert.Equal(t, "/work", fake.Commands[1].Dir)
}

func TestDown_DetectsOnce(t *testing.T) {
	fake := process.NewFakeExecutor()
	c := NewClient(fake, "localai", "/work", WithLogger(log.NewTestLogger()))

	files := []string{"docker-compose.yml", "supabase/docker/docker-compose.yml"}
	require.NoError(t, c.Down(context.Background(), DownOptions{Files: files}))
	require.NoError(t, c.Down(context.Background(), DownOptions{Files: files, Volumes: true, RemoveOrphans: true}))

	assert.Equal(t, []string{
		"docker compose version",
		"docker compose -p localai -f docker-compose.yml -f supabase/docker/docker-compose.yml down",
		"docker compose -p localai -f docker-compose.yml -f supabase/docker/docker-compose.yml down -v --remove-orphans",
	}, fake.Lines())
}

func TestPinnedBinary(t *testing.T) {
	fake := process.NewFakeExecutor()
	c := NewClient(fake, "localai", "", WithBinary("/usr/local/bin/docker-compose"), WithLogger(log.NewTestLogger()))
	require.NoError(t, c.Down(context.Background(), DownOptions{}))
	assert.Equal(t, []string{"/usr/local/bin/docker-compose -p localai down"}, fake.Lines())
}

func TestUp_PropagatesFailure(t *testing.T) {
	fake := process.NewFakeExecutor().On("docker compose -p", "", &process.ExitError{Command: "docker compose", ExitCode: 1})
	c := NewClient(fake, "localai", "", WithLogger(log.NewTestLogger()))

	err := c.Up(context.Background(), UpOptions{Files: []string{"docker-compose.yml"}})
	require.Error(t, err)
	assert.True(t, process.IsExitError(err))
}

func TestResolve_Unavailable(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	fake := process.NewFakeExecutor().On("docker compose version", "", errors.New("not found"))
	c := NewClient(fake, "localai", "", WithLogger(log.NewTestLogger()))

	err := c.Up(context.Background(), UpOptions{})
	assert.ErrorIs(t, err, ErrComposeUnavailable)
}
