// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/errutil"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	t.Cleanup(func() { configFile = "" })

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	out, err := executeRoot(t, "config", "show", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "driver: postgres")
	assert.Contains(t, out, "throttle: 15m0s")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
	assert.NotContains(t, out, "mailsecret")
	assert.Contains(t, out, "********")
}

func TestConfigShow_FlagOverridesFile(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	out, err := executeRoot(t, "config", "show", "--config", path, "--http-addr", "127.0.0.1:8080")
	require.NoError(t, err)
	assert.Contains(t, out, "addr: 127.0.0.1:8080")
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeConfig(t, validConfigYAML)
		out, err := executeRoot(t, "config", "validate", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid")
	})

	t.Run("missing secret", func(t *testing.T) {
		path := writeConfig(t, "database:\n  url: postgres://localhost/warden\n")
		_, err := executeRoot(t, "config", "validate", "--config", path)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := executeRoot(t, "config", "validate", "--config", "/nonexistent/warden.yaml")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	})
}
