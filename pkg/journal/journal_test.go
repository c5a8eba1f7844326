package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rzbill/localai/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j := NewJournal(log.NewTestLogger())
	require.NoError(t, j.Open(t.TempDir()))
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecord_Finish(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRecord("start", start)
	assert.NotEmpty(t, r.ID)
	assert.Zero(t, r.Duration())

	r.Finish("FAILED", errors.New("boom"), start.Add(90*time.Second))
	assert.Equal(t, "FAILED", r.State)
	assert.Equal(t, "boom", r.Error)
	assert.Equal(t, 90*time.Second, r.Duration())
}

func TestJournal_PutAndList(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i, cmd := range []string{"start", "stop", "start"} {
		r := NewRecord(cmd, base.Add(time.Duration(i)*time.Minute))
		r.Profile = "cpu"
		r.Finish("RUNNING", nil, r.StartedAt.Add(time.Second))
		require.NoError(t, j.Put(ctx, r))
		ids = append(ids, r.ID)
	}

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)
	assert.Equal(t, "cpu", all[1].Profile)

	limited, err := j.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[2], limited[0].ID)
	assert.Equal(t, ids[1], limited[1].ID)
}

func TestJournal_PutReplaces(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	r := NewRecord("start", time.Now())
	r.State = "NOT_STARTED"
	require.NoError(t, j.Put(ctx, r))

	r.Components = []string{"n8n", "qdrant"}
	r.Finish("RUNNING", nil, time.Now())
	require.NoError(t, j.Put(ctx, r))

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "RUNNING", all[0].State)
	assert.Equal(t, []string{"n8n", "qdrant"}, all[0].Components)
}

func TestJournal_Get(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	r := NewRecord("stop", time.Now())
	r.ID = "abc123"
	require.NoError(t, j.Put(ctx, r))

	got, err := j.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "stop", got.Command)

	_, err = j.Get(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestJournal_GetAmbiguous(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	for _, id := range []string{"abc1", "abc2"} {
		r := NewRecord("start", time.Now())
		r.ID = id
		require.NoError(t, j.Put(ctx, r))
	}

	_, err := j.Get(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestJournal_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j := NewJournal(log.NewTestLogger())
	require.NoError(t, j.Open(dir))
	r := NewRecord("start", time.Now())
	require.NoError(t, j.Put(ctx, r))
	require.NoError(t, j.Close())

	j2 := NewJournal(log.NewTestLogger())
	require.NoError(t, j2.Open(dir))
	defer j2.Close()

	got, err := j2.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func TestJournal_Errors(t *testing.T) {
	j := NewJournal(nil)
	_, err := j.List(context.Background(), 0)
	assert.Error(t, err, "not open")
	assert.NoError(t, j.Close())

	open := setupTestJournal(t)
	assert.Error(t, open.Put(context.Background(), &Record{}), "missing id")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, open.Put(ctx, NewRecord("start", time.Now())), context.Canceled)
}
