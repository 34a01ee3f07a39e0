// Package config provides application configuration structures and helpers.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/dataexchange/model"
)

// ContextSeparator splits the -context flag and CONTEXT variable.
const ContextSeparator = ';'

// ClientConfig holds the configuration settings for the agent.
type ClientConfig struct {
	ServerAddr      string // Server address
	APIKey          string // Key sent when opening a session
	ClientTimeout   int    // HTTP client timeout (in seconds)
	Key             string // Key for hash generation
	Enabled         bool   // When false the client drops everything
	MonitorInterval int    // Delay between monitoring executions (in seconds)
	StopTimeout     int    // Max wait for an in-flight execution on stop (in seconds)
	ScriptName      string // First path segment of monitored entries
	Verbose         bool   // Log monitoring failures
	Context         model.Context
	Logger          *zap.SugaredLogger
}

// NewClientConfig creates and returns a new ClientConfig by parsing flags and environment variables.
func NewClientConfig() *ClientConfig {
	logger := zap.Must(zap.NewProductionConfig().Build()).Sugar()

	cfg := &ClientConfig{
		ServerAddr:      "http://localhost:7400",
		ClientTimeout:   10,
		Enabled:         true,
		MonitorInterval: 30,
		StopTimeout:     60,
		ScriptName:      "agent",
	}

	var fAddr, fAPIKey, fKey, fScript, fContext, fConf strFlag
	var fTO, fInterval, fStop intFlag
	var fEnabled, fVerbose boolFlag
	flag.Var(&fAddr, "a", "HTTP server address (must include http(s)://)")
	flag.Var(&fAPIKey, "api-key", "API key for the session")
	flag.Var(&fTO, "t", "client timeout (seconds)")
	flag.Var(&fKey, "k", "Hash key string")
	flag.Var(&fEnabled, "e", "send data to the server")
	flag.Var(&fInterval, "p", "monitoring interval (seconds)")
	flag.Var(&fStop, "s", "monitoring stop timeout (seconds)")
	flag.Var(&fScript, "n", "script name")
	flag.Var(&fVerbose, "v", "log monitoring failures")
	flag.Var(&fContext, "context", "hardware;os;software;location;script;instance")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	if fAddr.set {
		cfg.ServerAddr = fAddr.v
	}
	if fAPIKey.set {
		cfg.APIKey = fAPIKey.v
	}
	if fTO.set {
		cfg.ClientTimeout = fTO.v
	}
	if fKey.set {
		cfg.Key = fKey.v
	}
	if fEnabled.set {
		cfg.Enabled = fEnabled.v
	}
	if fInterval.set {
		cfg.MonitorInterval = fInterval.v
	}
	if fStop.set {
		cfg.StopTimeout = fStop.v
	}
	if fScript.set {
		cfg.ScriptName = fScript.v
	}
	if fVerbose.set {
		cfg.Verbose = fVerbose.v
	}
	if fContext.set {
		cfg.Context = model.ContextFromLine(fContext.v, ContextSeparator)
	}

	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}
	if fConf.v != "" {
		js, err := loadClientJSON(fConf.v)
		if err != nil {
			logger.Warnw("failed to read config file", "path", fConf.v, "error", err)
		} else {
			if js.Address != nil && !fAddr.set {
				cfg.ServerAddr = *js.Address
			}
			if js.APIKey != nil && !fAPIKey.set {
				cfg.APIKey = *js.APIKey
			}
			if js.Enabled != nil && !fEnabled.set {
				cfg.Enabled = *js.Enabled
			}
			if js.MonitorInterval != nil && !fInterval.set {
				if sec, err := parseDurationSeconds(*js.MonitorInterval); err == nil {
					cfg.MonitorInterval = sec
				}
			}
			if js.StopTimeout != nil && !fStop.set {
				if sec, err := parseDurationSeconds(*js.StopTimeout); err == nil {
					cfg.StopTimeout = sec
				}
			}
			if js.ScriptName != nil && !fScript.set {
				cfg.ScriptName = *js.ScriptName
			}
			if js.Verbose != nil && !fVerbose.set {
				cfg.Verbose = *js.Verbose
			}
			if js.Context != nil && !fContext.set {
				cfg.Context = model.ContextFromLine(*js.Context, ContextSeparator)
			}
		}
	}

	readClientEnvironment(cfg, logger)

	// normalize address
	if !strings.HasPrefix(cfg.ServerAddr, "http://") && !strings.HasPrefix(cfg.ServerAddr, "https://") {
		cfg.ServerAddr = "http://" + cfg.ServerAddr
	}
	cfg.Logger = logger
	return cfg
}

func readClientEnvironment(cfg *ClientConfig, logger *zap.SugaredLogger) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.ServerAddr = addr
	}

	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}

	if enabled := os.Getenv("CLIENT_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err == nil {
			cfg.Enabled = v
		} else {
			logger.Warnw("invalid CLIENT_ENABLED env var", "error", err)
		}
	}

	if interval := os.Getenv("MONITOR_INTERVAL"); interval != "" {
		v, err := strconv.Atoi(interval)
		if err == nil {
			cfg.MonitorInterval = v
		} else {
			logger.Warnw("invalid MONITOR_INTERVAL env var", "error", err)
		}
	}

	if script := os.Getenv("SCRIPT_NAME"); script != "" {
		cfg.ScriptName = script
	}

	if verbose := os.Getenv("VERBOSE"); verbose != "" {
		if v, err := strconv.ParseBool(verbose); err == nil {
			cfg.Verbose = v
		}
	}

	if line := os.Getenv("CONTEXT"); line != "" {
		cfg.Context = model.ContextFromLine(line, ContextSeparator)
	}
	if v := os.Getenv("CONTEXT_HARDWARE"); v != "" {
		cfg.Context.Hardware = v
	}
	if v := os.Getenv("CONTEXT_OS"); v != "" {
		cfg.Context.OS = v
	}
	if v := os.Getenv("CONTEXT_SOFTWARE"); v != "" {
		cfg.Context.Software = v
	}
	if v := os.Getenv("CONTEXT_LOCATION"); v != "" {
		cfg.Context.Location = v
	}
	if v := os.Getenv("CONTEXT_INSTANCE_ID"); v != "" {
		cfg.Context.InstanceID = v
	}
}
