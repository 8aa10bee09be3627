package manager

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhost/internal/modelrt"
	"modelhost/pkg/types"
)

func TestExecSpawnerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	m := newTestManager(t, ManagerConfig{Spawner: helperSpawner(t, "ok")})

	require.NoError(t, m.Load(testCtx(t), "m1", modelrt.Precision4Bit))
	waitStatus(t, m, "m1", StateReady)
	assert.NotZero(t, m.Status().PID)

	text, err := m.Infer(testCtx(t), types.InferRequest{ModelID: "m1", Mode: "generate", Prompt: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo: Hello", text)

	text, err = m.Infer(testCtx(t), types.InferRequest{ModelID: "m1", Mode: "qa", Prompt: "2+2?"})
	require.NoError(t, err)
	assert.NotContains(t, text, "Assistant:")

	require.NoError(t, m.Teardown())
	_, active := m.ActiveModel()
	assert.False(t, active)
}

func TestExecSpawnerLoadFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	m := newTestManager(t, ManagerConfig{Spawner: helperSpawner(t, "fail")})
	require.NoError(t, m.Load(testCtx(t), "m1", ""))
	st := waitStatus(t, m, "m1", StateError)
	assert.Contains(t, st.Error, "no weights found")
}

func TestExecSpawnerCrashReportsStderr(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	m := newTestManager(t, ManagerConfig{Spawner: helperSpawner(t, "crash")})
	require.NoError(t, m.Load(testCtx(t), "m1", ""))
	st := waitStatus(t, m, "m1", StateError)
	assert.Contains(t, st.Error, "exited before reporting ready")
	assert.Contains(t, st.Error, "weights are corrupt")
}

func TestExecSpawnerMissingBinary(t *testing.T) {
	sp := &ExecSpawner{Command: []string{"/nonexistent/modelhost"}}
	_, _, err := sp.Spawn(testCtx(t), WorkerSpec{ModelID: "m1", Dir: "/tmp"})
	assert.ErrorContains(t, err, "start worker")

	m := newTestManager(t, ManagerConfig{Spawner: sp})
	r := m.SanityCheck()
	assert.False(t, r.WorkerFound)
	assert.Equal(t, "/nonexistent/modelhost", r.WorkerCommand)
	assert.Equal(t, modelrt.LlamaBuilt(), r.LlamaBuilt)

	r = newTestManager(t, ManagerConfig{}).SanityCheck()
	assert.True(t, r.WorkerFound)
}

func TestStderrLogKeepsTail(t *testing.T) {
	w := &stderrLog{log: zerolog.Nop()}
	_, _ = w.Write([]byte("partial "))
	_, _ = w.Write([]byte("line\nnext\n"))
	assert.Equal(t, "partial line\nnext", w.Tail())

	_, _ = w.Write([]byte(strings.Repeat("x", stderrTailBytes+10)))
	tail := w.Tail()
	assert.Len(t, tail, stderrTailBytes)
	assert.True(t, strings.HasSuffix(tail, "xxx"))
}
