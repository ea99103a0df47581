package useragent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent writes an executable shell script standing in for baresip.
func fakeAgent(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-baresip")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

const registeringAgent = `echo "baresip is ready."
echo "sip:100@pbx.example.com: {0/UDP/v4} 200 OK (Asterisk) [1 binding]"
while read line; do echo "cmd: $line"; done`

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	seen  chan string
}

func newLineRecorder() *lineRecorder {
	return &lineRecorder{seen: make(chan string, 64)}
}

func (r *lineRecorder) OnLine(_, line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	r.seen <- line
}

func (r *lineRecorder) waitFor(t *testing.T, substr string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case line := <-r.seen:
			if strings.Contains(line, substr) {
				return
			}
		case <-deadline:
			t.Fatalf("line containing %q not seen", substr)
		}
	}
}

func newTestSupervisor(t *testing.T, script string, hooks Hooks) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	s := NewSupervisor(Config{
		Binary:        fakeAgent(t, script),
		Args:          []string{},
		WorkDir:       dir,
		ShutdownGrace: 300 * time.Millisecond,
	}, hooks)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateStopped, StateStarting))
	assert.True(t, CanTransition(StateStarting, StateRegistered))
	assert.True(t, CanTransition(StateStarting, StateFailed))
	assert.True(t, CanTransition(StateRegistered, StateFailed))
	assert.True(t, CanTransition(StateRegistered, StateStopped))
	assert.True(t, CanTransition(StateFailed, StateStarting))

	assert.False(t, CanTransition(StateStopped, StateRegistered))
	assert.False(t, CanTransition(StateRegistered, StateStarting))
	assert.False(t, CanTransition(StateStopped, StateFailed))
}

func TestEnsureConfiguredIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".baresip")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	cfgPath := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(cfgPath, []byte("# existing\nmodule\t\tstdio.so\nsip_listen 0.0.0.0:5060"), 0o644))

	s := NewSupervisor(Config{WorkDir: dir}, Hooks{})
	require.NoError(t, s.EnsureConfigured())
	first, err := os.ReadFile(cfgPath)
	require.NoError(t, err)

	require.NoError(t, s.EnsureConfigured())
	second, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	content := string(first)
	assert.Equal(t, 1, strings.Count(content, "stdio.so"))
	assert.Equal(t, 1, strings.Count(content, "aufile.so"))
	assert.Equal(t, 1, strings.Count(content, "answermode"))
	assert.Contains(t, content, "sip_listen 0.0.0.0:5060\n")

	// a conflicting value is rewritten, not skipped
	require.NoError(t, os.WriteFile(cfgPath, []byte("answermode\t\tmanual\nmodule   stdio.so\n"), 0o644))
	require.NoError(t, s.EnsureConfigured())
	rewritten, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "answermode\t\tauto\nmodule   stdio.so\nmodule\t\t\taufile.so\n", string(rewritten))

	require.NoError(t, s.EnsureConfigured())
	again, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, string(rewritten), string(again))
}

func TestEnsureConfiguredCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	s := NewSupervisor(Config{WorkDir: dir, Directives: []string{"module_app ctrl_tcp.so"}}, Hooks{})
	require.NoError(t, s.EnsureConfigured())

	data, err := os.ReadFile(filepath.Join(dir, "config"))
	require.NoError(t, err)
	assert.Equal(t, "module_app ctrl_tcp.so\n", string(data))
}

func TestEnsureConfiguredFails(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	s := NewSupervisor(Config{WorkDir: filepath.Join(file, "sub")}, Hooks{})
	assert.ErrorIs(t, s.EnsureConfigured(), ErrConfig)
}

func TestStartMissingBinary(t *testing.T) {
	s := NewSupervisor(Config{Binary: "/nonexistent/baresip", WorkDir: t.TempDir()}, Hooks{})
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrProcessStart)
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, s.AwaitRegistration(context.Background(), 10*time.Millisecond))
}

func TestLifecycle(t *testing.T) {
	lines := newLineRecorder()
	var mu sync.Mutex
	var changes []string
	crashed := false
	s := newTestSupervisor(t, registeringAgent, Hooks{
		OnLine: lines.OnLine,
		OnStateChange: func(from, to State) {
			mu.Lock()
			changes = append(changes, string(from)+">"+string(to))
			mu.Unlock()
		},
		OnCrash: func(error) { crashed = true },
	})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.True(t, s.AwaitRegistration(ctx, 5*time.Second))
	assert.Equal(t, StateRegistered, s.State())

	status := s.Status()
	assert.Equal(t, StateRegistered, status.State)
	assert.NotZero(t, status.PID)
	assert.False(t, status.RegisteredAt.IsZero())

	// idempotent while running
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, status.PID, s.Status().PID)

	require.NoError(t, s.SendCommand("/ausrc aufile,/tmp/greeting.wav"))
	lines.waitFor(t, "cmd: /ausrc aufile,/tmp/greeting.wav")

	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, crashed)
	assert.ErrorIs(t, s.SendCommand("/hangup"), ErrControlChannelUnavailable)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"stopped>starting", "starting>registered", "registered>stopped"}, changes)
}

func TestCrashIsReportedOnce(t *testing.T) {
	crashes := make(chan error, 4)
	s := newTestSupervisor(t, `echo "baresip is ready."; exit 3`, Hooks{
		OnCrash: func(err error) { crashes <- err },
	})

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.AwaitRegistration(context.Background(), 5*time.Second))

	select {
	case err := <-crashes:
		assert.True(t, errors.Is(err, ErrProcessCrash))
		assert.Contains(t, err.Error(), "exit status 3")
	case <-time.After(5 * time.Second):
		t.Fatal("crash not reported")
	}
	assert.Equal(t, StateFailed, s.State())
	assert.Contains(t, s.Status().LastError, "exit status 3")

	select {
	case err := <-crashes:
		t.Fatalf("second crash report: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	// restart is an explicit decision
	require.NoError(t, s.Start(context.Background()))
	assert.Contains(t, []State{StateStarting, StateFailed}, s.State())
}

func TestAwaitRegistrationTimeout(t *testing.T) {
	s := newTestSupervisor(t, `while read line; do :; done`, Hooks{})
	require.NoError(t, s.Start(context.Background()))

	start := time.Now()
	assert.False(t, s.AwaitRegistration(context.Background(), 150*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, StateStarting, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.AwaitRegistration(ctx, time.Minute))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, s.State())
}

func TestShutdownKillsAfterGrace(t *testing.T) {
	s := newTestSupervisor(t, `trap '' TERM
echo "200 OK"
while :; do sleep 0.05; done`, Hooks{})
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.AwaitRegistration(context.Background(), 5*time.Second))

	start := time.Now()
	require.NoError(t, s.Shutdown(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, StateStopped, s.State())
}

func TestShutdownWhenStopped(t *testing.T) {
	s := NewSupervisor(Config{WorkDir: t.TempDir()}, Hooks{})
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, s.State())
}

func TestSendCommandChannelVariants(t *testing.T) {
	dir := t.TempDir()
	missing := NewSupervisor(Config{WorkDir: dir, ControlPath: filepath.Join(dir, "nope")}, Hooks{})
	assert.ErrorIs(t, missing.SendCommand("/about"), ErrControlChannelUnavailable)

	plain := filepath.Join(dir, "commands.txt")
	require.NoError(t, os.WriteFile(plain, nil, 0o644))
	s := NewSupervisor(Config{WorkDir: dir, ControlPath: plain}, Hooks{})
	require.NoError(t, s.SendCommand("/ausrc aufile,a.wav"))
	require.NoError(t, s.SendCommand("/hangup\n"))

	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "/ausrc aufile,a.wav\n/hangup\n", string(data))
}
