package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/localai/pkg/log"
)

func skipIfNoShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" || !Available("sh") {
		t.Skip("requires a POSIX shell")
	}
}

func TestProcessRunner_Output(t *testing.T) {
	skipIfNoShell(t)
	var stderr bytes.Buffer
	r := NewProcessRunner(WithLogger(log.NewTestLogger()), WithOutput(&bytes.Buffer{}, &stderr), WithEnv("LOCALAI_TEST=42"))

	out, err := r.Output(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo $LOCALAI_TEST"}})
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(out))
}

func TestProcessRunner_DirIsScoped(t *testing.T) {
	skipIfNoShell(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), nil, 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)

	r := NewProcessRunner(WithLogger(log.NewTestLogger()), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	out, err := r.Output(context.Background(), Command{Name: "ls", Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, string(out), "marker")

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, after)
}

func TestProcessRunner_ExitError(t *testing.T) {
	skipIfNoShell(t)
	var stderr bytes.Buffer
	r := NewProcessRunner(WithLogger(log.NewTestLogger()), WithOutput(&bytes.Buffer{}, &stderr))

	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	require.Error(t, err)
	assert.True(t, IsExitError(err))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "boom", exitErr.Stderr)
	assert.Equal(t, "boom\n", stderr.String())
}

func TestProcessRunner_MissingBinary(t *testing.T) {
	r := NewProcessRunner(WithLogger(log.NewTestLogger()))
	err := r.Run(context.Background(), Command{Name: "this-command-should-not-exist-12345"})
	require.Error(t, err)
	assert.False(t, IsExitError(err))
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("def"))
	assert.Equal(t, "cdef", b.String())
}

func TestFakeExecutor(t *testing.T) {
	f := NewFakeExecutor().
		On("docker compose", "", nil).
		On("docker compose -p localai down", "", errors.New("down failed"))

	ctx := context.Background()
	assert.NoError(t, f.Run(ctx, Command{Name: "docker", Args: []string{"compose", "version"}}))
	assert.Error(t, f.Run(ctx, Command{Name: "docker", Args: []string{"compose", "-p", "localai", "down"}}))
	assert.NoError(t, f.Run(ctx, Command{Name: "git", Args: []string{"pull"}}))

	assert.Equal(t, []string{
		"docker compose version",
		"docker compose -p localai down",
		"git pull",
	}, f.Lines())
}
