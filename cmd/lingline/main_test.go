package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigureCommand(t *testing.T) {
	workdir := filepath.Join(t.TempDir(), "baresip")
	t.Setenv("APP_ENV", "test-does-not-exist")
	t.Setenv("UA_WORKDIR", workdir)

	out, err := run(t, "configure")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(workdir, "config"))

	data, err := os.ReadFile(filepath.Join(workdir, "config"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "stdio.so")

	// running again does not duplicate directives
	_, err = run(t, "configure")
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(workdir, "config"))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestNotifyTestWithoutNotifiers(t *testing.T) {
	t.Setenv("APP_ENV", "test-does-not-exist")

	out, err := run(t, "notify-test", "-m", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "sent via nop: hello")
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("APP_ENV", "test-does-not-exist")
	t.Setenv("TTS_PROVIDER", "acme")

	_, err := run(t, "configure")
	assert.Error(t, err)
}
