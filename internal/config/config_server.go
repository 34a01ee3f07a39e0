package config

import (
	"flag"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// ServerConfig holds the configuration settings for the server.
type ServerConfig struct {
	Addr            string // Server address
	Logger          *zap.SugaredLogger
	StoreInterval   int    // Interval for storing sessions to file (in seconds)
	FileStoragePath string // Path to the file for session storage
	Restore         bool   // Whether to restore sessions from file on startup
	DatabaseDsn     string // Data Source Name for PostgreSQL
	APIKey          string // Required API key for new sessions, empty accepts any
	Key             string // Key for hash verification
	TrustedSubnet   string // CIDR, ex. "192.168.1.0/24"
	RateLimit       int    // Requests per second, 0 is unlimited
	ServerSideXML   bool   // Accept raw XML documents and flatten them here
}

// NewServerConfig creates and returns a new ServerConfig by parsing flags and environment variables.
func NewServerConfig() *ServerConfig {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "server.log"}
	logger := zap.Must(logCfg.Build()).Sugar()

	// 0) defaults
	cfg := &ServerConfig{
		Addr:            "localhost:7400",
		StoreInterval:   300,
		FileStoragePath: "./tmp/dataexchange-db.json",
		Restore:         true,
		ServerSideXML:   true,
	}

	// 1) flags
	var fAddr strFlag
	fAddr.v = cfg.Addr
	var fStoreI intFlag
	fStoreI.v = cfg.StoreInterval
	var fFile strFlag
	fFile.v = cfg.FileStoragePath
	var fRestore boolFlag
	fRestore.v = cfg.Restore
	var fXML boolFlag
	fXML.v = cfg.ServerSideXML
	var fDSN strFlag
	var fAPIKey strFlag
	var fKey strFlag
	var fConf strFlag // -c / -config
	var fTrustedSubnet strFlag
	var fRate intFlag

	flag.Var(&fAddr, "a", "HTTP server address")
	flag.Var(&fStoreI, "i", "store interval (seconds)")
	flag.Var(&fFile, "f", "path to sessions file")
	flag.Var(&fRestore, "r", "restore from file")
	flag.Var(&fDSN, "d", "DB connection string")
	flag.Var(&fAPIKey, "api-key", "API key required to open a session")
	flag.Var(&fKey, "k", "Hash key string")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Var(&fTrustedSubnet, "t", "trusted subnet")
	flag.Var(&fRate, "l", "rate limit (requests per second)")
	flag.Var(&fXML, "x", "flatten XML documents on the server")
	flag.Parse()

	cfg.Addr = fAddr.v
	cfg.StoreInterval = fStoreI.v
	cfg.FileStoragePath = fFile.v
	cfg.Restore = fRestore.v
	cfg.DatabaseDsn = fDSN.v
	cfg.APIKey = fAPIKey.v
	cfg.Key = fKey.v
	cfg.TrustedSubnet = fTrustedSubnet.v
	cfg.RateLimit = fRate.v
	cfg.ServerSideXML = fXML.v

	// 3) JSON (lowest priority)
	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}

	if fConf.v != "" {
		js, err := loadServerJSON(fConf.v)
		if err != nil {
			logger.Warnw("failed to read config file", "path", fConf.v, "error", err)
		} else {
			if js.Address != nil && !fAddr.set {
				cfg.Addr = *js.Address
			}
			if js.Restore != nil && !fRestore.set {
				cfg.Restore = *js.Restore
			}
			if js.StoreInterval != nil && !fStoreI.set {
				if sec, err := parseDurationSeconds(*js.StoreInterval); err == nil {
					cfg.StoreInterval = sec
				}
			}
			if js.StoreFile != nil && !fFile.set {
				cfg.FileStoragePath = *js.StoreFile
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.APIKey != nil && !fAPIKey.set {
				cfg.APIKey = *js.APIKey
			}
			if js.TrustedSubnet != nil && !fTrustedSubnet.set {
				cfg.TrustedSubnet = *js.TrustedSubnet
			}
			if js.RateLimit != nil && !fRate.set {
				cfg.RateLimit = *js.RateLimit
			}
			if js.ServerSideXML != nil && !fXML.set {
				cfg.ServerSideXML = *js.ServerSideXML
			}
		}
	}

	readServerEnvironment(cfg, logger)

	cfg.Logger = logger
	return cfg
}

func readServerEnvironment(cfg *ServerConfig, logger *zap.SugaredLogger) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}

	storeIntervalEnv := os.Getenv("STORE_INTERVAL")
	if storeIntervalEnv != "" {
		v, err := strconv.Atoi(storeIntervalEnv)
		if err == nil {
			cfg.StoreInterval = v
		} else {
			logger.Warnw("invalid STORE_INTERVAL env var", "error", err)
		}
	}

	if fsp := os.Getenv("FILE_STORAGE_PATH"); fsp != "" {
		cfg.FileStoragePath = fsp
	} else if fsp := os.Getenv("STORE_FILE"); fsp != "" {
		cfg.FileStoragePath = fsp
	}

	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}

	restoreEnv := os.Getenv("RESTORE")
	if restoreEnv != "" {
		v, err := strconv.ParseBool(restoreEnv)
		if err == nil {
			cfg.Restore = v
		} else {
			logger.Warnw("invalid RESTORE env var", "error", err)
		}
	}

	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}

	if trustedSubnet := os.Getenv("TRUSTED_SUBNET"); trustedSubnet != "" {
		cfg.TrustedSubnet = trustedSubnet
	}

	if rateLimit := os.Getenv("RATE_LIMIT"); rateLimit != "" {
		if i, err := strconv.Atoi(rateLimit); err == nil {
			cfg.RateLimit = i
		} else {
			logger.Warnw("invalid RATE_LIMIT env var", "error", err)
		}
	}

	if xml := os.Getenv("SERVER_SIDE_XML"); xml != "" {
		if v, err := strconv.ParseBool(xml); err == nil {
			cfg.ServerSideXML = v
		}
	}
}
