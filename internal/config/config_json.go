package config

import (
	"encoding/json"
	"os"
	"time"
)

type serverJSON struct {
	Address       *string `json:"address"`
	Restore       *bool   `json:"restore"`
	StoreInterval *string `json:"store_interval"` // "1s"
	StoreFile     *string `json:"store_file"`
	DatabaseDSN   *string `json:"database_dsn"`
	APIKey        *string `json:"api_key"`
	TrustedSubnet *string `json:"trusted_subnet"`
	RateLimit     *int    `json:"rate_limit"`
	ServerSideXML *bool   `json:"server_side_xml"`
}

type clientJSON struct {
	Address         *string `json:"address"`
	APIKey          *string `json:"api_key"`
	Enabled         *bool   `json:"enabled"`
	MonitorInterval *string `json:"monitor_interval"` // "30s"
	StopTimeout     *string `json:"stop_timeout"`
	ScriptName      *string `json:"script_name"`
	Verbose         *bool   `json:"verbose"`
	Context         *string `json:"context"` // "hardware;os;software;location"
}

func loadServerJSON(path string) (*serverJSON, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg serverJSON
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadClientJSON(path string) (*clientJSON, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c clientJSON
	return &c, json.Unmarshal(b, &c)
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}
