package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

	for i, kind := range []string{"machines", "top", "pareto"} {
		require.NoError(t, l.Record(ctx, Entry{
			User:   "admin@colle.eu",
			Kind:   kind,
			Format: "xlsx",
			Branch: "Leipzig",
			Rows:   10 * (i + 1),
			At:     base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "pareto", entries[0].Kind)
	assert.Equal(t, 30, entries[0].Rows)
	assert.True(t, entries[0].At.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, "top", entries[1].Kind)
	assert.NotZero(t, entries[0].ID)
}

func TestRecordDefaultsTime(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	require.NoError(t, l.Record(ctx, Entry{User: "u@colle.eu", Kind: "monthly", Format: "csv"}))

	entries, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].At.After(before))
	assert.Equal(t, "", entries[0].Branch)
}

func TestRecentEmpty(t *testing.T) {
	l := openTestLog(t)

	entries, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
