package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./feedpane.db" description:"Path to the SQLite database file"`

	// HTTP server configuration
	Port string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	// Worker configuration
	WorkerCount    int  `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed updates"`
	FetchTimeout   int  `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	DomainInterval int  `long:"domain-interval" env:"DOMAIN_INTERVAL" default:"5" description:"Minimum seconds between fetches to the same domain"`
	StaleAfter     int  `long:"stale-after" env:"STALE_AFTER" default:"900" description:"Feed age in seconds before it is due for refresh"`
	SweepInterval  int  `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"300" description:"Seconds between periodic sweeps of all feeds"`
	MaxFailures    int  `long:"max-failures" env:"MAX_FAILURES" default:"10" description:"Consecutive failures before automatic retries are suspended"`
	RetryBase      int  `long:"retry-base" env:"RETRY_BASE" default:"2" description:"Transient-failure retry backoff base in seconds"`
	RetryCap       int  `long:"retry-cap" env:"RETRY_CAP" default:"300" description:"Transient-failure retry backoff cap in seconds"`
	ExtractContent bool `long:"extract-content" env:"EXTRACT_CONTENT" description:"Fetch article pages to extract full text for teaser-only feeds"`

	// Application metadata
	SeedsFile string `long:"seeds-file" env:"SEEDS_FILE" default:"./seeds.yml" description:"YAML file with default feeds added on first start"`
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Feedpane/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:         raw.DBPath,
		Port:           raw.Port,
		WorkerCount:    raw.WorkerCount,
		FetchTimeout:   raw.FetchTimeout,
		DomainInterval: raw.DomainInterval,
		StaleAfter:     raw.StaleAfter,
		SweepInterval:  raw.SweepInterval,
		MaxFailures:    raw.MaxFailures,
		RetryBase:      raw.RetryBase,
		RetryCap:       raw.RetryCap,
		ExtractContent: raw.ExtractContent,
		SeedsFile:      raw.SeedsFile,
		UserAgent:      raw.UserAgent,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
