package process

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun_ExitCodes(t *testing.T) {
	skipOnWindows(t)
	orch := New(WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	ctx := context.Background()

	t.Run("zero is success", func(t *testing.T) {
		h, err := orch.Run(ctx, "sh", []string{"-c", "exit 0"}, Inherit)
		require.NoError(t, err)
		code, exited := h.ExitCode()
		assert.True(t, exited)
		assert.Zero(t, code)
	})

	t.Run("nonzero is a ProcessFailure", func(t *testing.T) {
		_, err := orch.Run(ctx, "sh", []string{"-c", "echo broken >&2; exit 3"}, Inherit)

		var failure *ProcessFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "sh", failure.Command)
		assert.Equal(t, 3, failure.ExitCode)
		assert.Contains(t, failure.Stderr, "broken")
		assert.EqualError(t, err, `command "sh" exited with code 3: broken`)
	})
}

func TestSpawn_AwaitExit(t *testing.T) {
	skipOnWindows(t)
	orch := New(WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))

	h, err := orch.Spawn(context.Background(), "sh", []string{"-c", "exit 7"}, Capture)
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)

	code, err := orch.AwaitExit(h)
	assert.Equal(t, 7, code)
	var failure *ProcessFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 7, failure.ExitCode)
}

func TestSpawn_MissingCommand(t *testing.T) {
	orch := New()
	_, err := orch.Spawn(context.Background(), "definitely-not-a-real-binary-xyz", nil, Inherit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start definitely-not-a-real-binary-xyz")
}

func TestModes(t *testing.T) {
	skipOnWindows(t)

	t.Run("inherit forwards output", func(t *testing.T) {
		var out, errOut bytes.Buffer
		orch := New(WithOutput(&out, &errOut))

		h, err := orch.Run(context.Background(), "sh", []string{"-c", "echo hello; echo oops >&2"}, Inherit)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", out.String())
		assert.Equal(t, "oops\n", errOut.String())
		assert.Nil(t, h.Stdout())
	})

	t.Run("capture keeps output", func(t *testing.T) {
		var out bytes.Buffer
		orch := New(WithOutput(&out, &out))

		h, err := orch.Run(context.Background(), "sh", []string{"-c", "echo captured"}, Capture)
		require.NoError(t, err)
		assert.Equal(t, "captured\n", string(h.Stdout()))
		assert.Empty(t, out.String())
	})
}

func TestSpawnOptions(t *testing.T) {
	skipOnWindows(t)
	orch := New(WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	dir := t.TempDir()

	h, err := orch.Run(context.Background(), "sh", []string{"-c", `pwd; echo "$GREETING"; cat`}, Capture,
		WithDir(dir),
		WithEnv("GREETING=hi"),
		WithStdin(strings.NewReader("from stdin")),
	)
	require.NoError(t, err)

	lines := strings.Split(string(h.Stdout()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasSuffix(lines[0], "/"+lastPathElem(dir)), "pwd was %q", lines[0])
	assert.Equal(t, "hi", lines[1])
	assert.Equal(t, "from stdin", lines[2])
}

func lastPathElem(p string) string {
	return p[strings.LastIndexAny(p, `/\`)+1:]
}

func TestWithLineObserver(t *testing.T) {
	skipOnWindows(t)
	orch := New(WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))

	var mu sync.Mutex
	var seen []string
	_, err := orch.Run(context.Background(), "sh", []string{"-c", "printf 'one\\ntwo\\nthree'"}, Capture,
		WithLineObserver(func(line string) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, line)
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, seen)
}

func TestDiscard_FeedsObserverOnly(t *testing.T) {
	skipOnWindows(t)
	out := &bytes.Buffer{}
	orch := New(WithOutput(out, &bytes.Buffer{}))

	var mu sync.Mutex
	var seen []string
	h, err := orch.Run(context.Background(), "sh", []string{"-c", "echo ready; echo more"}, Discard,
		WithLineObserver(func(line string) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, line)
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"ready", "more"}, seen)
	assert.Nil(t, h.Stdout())
	assert.Empty(t, out.String())
	assert.Equal(t, "discard", Discard.String())
}

func TestHandle_Kill(t *testing.T) {
	skipOnWindows(t)
	orch := New(WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))

	h, err := orch.Spawn(context.Background(), "sleep", []string{"30"}, Inherit)
	require.NoError(t, err)

	require.NoError(t, h.Kill())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Kill")
	}

	code, err := orch.AwaitExit(h)
	assert.Equal(t, -1, code)
	assert.Error(t, err)
	assert.NoError(t, h.Kill(), "killing an exited process is a no-op")
}
