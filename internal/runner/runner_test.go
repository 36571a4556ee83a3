package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutput(t *testing.T) {
	out, err := New().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(string(out)))
}

func TestRunToolNotFound(t *testing.T) {
	_, err := New().Run(context.Background(), Command{
		Path: "definitely-not-installed-anywhere",
	})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRunToolFailed(t *testing.T) {
	_, err := New().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo oops >&2; exit 3"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolFailed)

	var rerr *RunnerError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Stderr, "oops")
}

func TestRunTimeout(t *testing.T) {
	start := time.Now()
	_, err := New().Run(context.Background(), Command{
		Path:    "sh",
		Args:    []string{"-c", "sleep 10"},
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := New().Run(ctx, Command{
		Path: "sh",
		Args: []string{"-c", "sleep 10"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookPath(t *testing.T) {
	assert.NoError(t, LookPath("sh"))
	assert.ErrorIs(t, LookPath("definitely-not-installed-anywhere"), ErrToolNotFound)
}
