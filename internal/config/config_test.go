package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setEnvAndRun(t *testing.T, env map[string]string, fn func()) {
	t.Helper()

	backup := map[string]string{}
	for k := range env {
		backup[k] = os.Getenv(k)
	}

	for k, v := range env {
		require.NoError(t, os.Setenv(k, v))
	}
	defer func() {
		for k := range env {
			_ = os.Unsetenv(k)
			if old, ok := backup[k]; ok {
				_ = os.Setenv(k, old)
			}
		}
	}()

	fn()
}

func withFreshFlagSet(t *testing.T, fn func()) {
	t.Helper()
	withArgs(t, nil, fn)
}

func withArgs(t *testing.T, args []string, fn func()) {
	t.Helper()
	oldSet, oldArgs := flag.CommandLine, os.Args
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = append([]string{oldArgs[0]}, args...)
	defer func() { flag.CommandLine, os.Args = oldSet, oldArgs }()
	fn()
}

func TestReadServerEnvironment(t *testing.T) {
	env := map[string]string{
		"ADDRESS":           "127.0.0.1:9999",
		"STORE_INTERVAL":    "5",
		"FILE_STORAGE_PATH": "/tmp/testfile.json",
		"RESTORE":           "false",
		"RATE_LIMIT":        "20",
		"SERVER_SIDE_XML":   "false",
		"API_KEY":           "api",
	}

	setEnvAndRun(t, env, func() {
		cfg := &ServerConfig{Restore: true, ServerSideXML: true}
		readServerEnvironment(cfg, zap.NewNop().Sugar())

		require.Equal(t, "127.0.0.1:9999", cfg.Addr)
		require.Equal(t, 5, cfg.StoreInterval)
		require.Equal(t, "/tmp/testfile.json", cfg.FileStoragePath)
		require.False(t, cfg.Restore)
		require.Equal(t, 20, cfg.RateLimit)
		require.False(t, cfg.ServerSideXML)
		require.Equal(t, "api", cfg.APIKey)
	})
}

func TestReadServerEnvironment_Invalid(t *testing.T) {
	env := map[string]string{
		"ADDRESS":        "0.0.0.0:9090",
		"STORE_INTERVAL": "bad",
		"RESTORE":        "nope",
		"DATABASE_DSN":   "postgres://u:p@h/db",
		"KEY":            "secret",
	}
	setEnvAndRun(t, env, func() {
		cfg := &ServerConfig{StoreInterval: 300, Restore: true}
		readServerEnvironment(cfg, zap.NewNop().Sugar())
		require.Equal(t, "0.0.0.0:9090", cfg.Addr)
		require.Equal(t, 300, cfg.StoreInterval)
		require.True(t, cfg.Restore)
		require.Equal(t, "postgres://u:p@h/db", cfg.DatabaseDsn)
		require.Equal(t, "secret", cfg.Key)
	})
}

func TestReadClientEnvironment(t *testing.T) {
	env := map[string]string{
		"ADDRESS":          "127.0.0.1:9999",
		"API_KEY":          "api",
		"CLIENT_ENABLED":   "false",
		"MONITOR_INTERVAL": "5",
		"SCRIPT_NAME":      "checkout",
		"VERBOSE":          "true",
		"CONTEXT":          "x86;linux;agent;Paris",
		"CONTEXT_OS":       "darwin",
	}

	setEnvAndRun(t, env, func() {
		cfg := &ClientConfig{Enabled: true}
		readClientEnvironment(cfg, zap.NewNop().Sugar())

		require.Equal(t, "127.0.0.1:9999", cfg.ServerAddr)
		require.Equal(t, "api", cfg.APIKey)
		require.False(t, cfg.Enabled)
		require.Equal(t, 5, cfg.MonitorInterval)
		require.Equal(t, "checkout", cfg.ScriptName)
		require.True(t, cfg.Verbose)
		require.Equal(t, "x86", cfg.Context.Hardware)
		require.Equal(t, "darwin", cfg.Context.OS)
		require.Equal(t, "Paris", cfg.Context.Location)
	})
}

func TestNewClientConfig_AddsHTTPPrefix(t *testing.T) {
	env := map[string]string{"ADDRESS": "srv:9090"}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := NewClientConfig()
			require.Equal(t, "http://srv:9090", cfg.ServerAddr)
			require.True(t, cfg.Enabled)
			require.Equal(t, 30, cfg.MonitorInterval)
			require.Equal(t, 60, cfg.StopTimeout)
			require.NotNil(t, cfg.Logger)
		})
	})
}

func TestNewClientConfig_FlagsBeatJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"address": "http://json:1",
		"monitor_interval": "15s",
		"script_name": "from-json",
		"enabled": false,
		"context": "arm;linux"
	}`), 0o600))

	withArgs(t, []string{"-c", path, "-n", "from-flag", "-v"}, func() {
		cfg := NewClientConfig()
		require.Equal(t, "http://json:1", cfg.ServerAddr)
		require.Equal(t, 15, cfg.MonitorInterval)
		require.Equal(t, "from-flag", cfg.ScriptName)
		require.False(t, cfg.Enabled)
		require.True(t, cfg.Verbose)
		require.Equal(t, "arm-linux", cfg.Context.Platform())
	})
}

func TestNewServerConfig_BuildsLoggerAndReadsEnv(t *testing.T) {
	env := map[string]string{
		"ADDRESS":           "127.0.0.1:7070",
		"FILE_STORAGE_PATH": "/tmp/s.json",
		"DATABASE_DSN":      "dsn",
		"KEY":               "s",
	}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := NewServerConfig()
			require.NotNil(t, cfg.Logger)
			require.Equal(t, "127.0.0.1:7070", cfg.Addr)
			require.Equal(t, "/tmp/s.json", cfg.FileStoragePath)
			require.Equal(t, "dsn", cfg.DatabaseDsn)
			require.Equal(t, "s", cfg.Key)
			require.True(t, cfg.ServerSideXML)
		})
	})
}

func TestNewServerConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"address": "127.0.0.1:7401",
		"store_interval": "1m",
		"rate_limit": 50,
		"server_side_xml": false,
		"trusted_subnet": "10.0.0.0/8"
	}`), 0o600))

	withArgs(t, []string{"-config", path, "-l", "5"}, func() {
		cfg := NewServerConfig()
		require.Equal(t, "127.0.0.1:7401", cfg.Addr)
		require.Equal(t, 60, cfg.StoreInterval)
		require.Equal(t, 5, cfg.RateLimit)
		require.False(t, cfg.ServerSideXML)
		require.Equal(t, "10.0.0.0/8", cfg.TrustedSubnet)
	})
}
