package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, v, built, commit string) {
	t.Helper()
	oldV, oldB, oldC := Version, BuildTime, Commit
	t.Cleanup(func() { Version, BuildTime, Commit = oldV, oldB, oldC })
	Version, BuildTime, Commit = v, built, commit
}

func TestInfo(t *testing.T) {
	withBuild(t, "0.4.0", "2026-10-01", "abcdef0123456789")

	info := Info()
	assert.Contains(t, info, "localai 0.4.0 (abcdef01)")
	assert.NotContains(t, info, "abcdef0123456789")
	assert.Contains(t, info, "2026-10-01")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)

	Commit = "abc123"
	assert.Contains(t, Info(), "(abc123)")
}

func TestMap(t *testing.T) {
	withBuild(t, "0.4.0", "2026-10-01", "abcdef0123456789")

	m := Map()
	assert.Equal(t, "0.4.0", m["version"])
	assert.Equal(t, "abcdef0123456789", m["commit"])
	assert.Equal(t, "2026-10-01", m["buildTime"])
	assert.Equal(t, runtime.GOOS, m["os"])
	assert.Equal(t, runtime.GOARCH, m["arch"])
	assert.Regexp(t, `^go1\.`, m["goVersion"])
}
