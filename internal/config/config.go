// Package config provides configuration management for the clipper agent.
// Configuration is loaded from environment variables (and an optional .env
// file) with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8797
	DefaultLogLevel = "info"
	DefaultDataDir  = ".heimdex-clipper"

	// Environment variable names
	EnvPort     = "CLIPPER_PORT"
	EnvLogLevel = "CLIPPER_LOG_LEVEL"
	EnvDataDir  = "CLIPPER_DATA_DIR"
	EnvHeadless = "CLIPPER_HEADLESS"
	EnvFFmpeg   = "CLIPPER_FFMPEG"

	// Remote captioning service
	EnvRemoteURL         = "CLIPPER_REMOTE_URL"
	EnvRemoteToken       = "CLIPPER_REMOTE_TOKEN"
	EnvRemoteConcurrency = "CLIPPER_REMOTE_CONCURRENCY"

	// Batch pacing
	EnvAutosaveDelay = "CLIPPER_AUTOSAVE_DELAY_MS"
	EnvItemDelay     = "CLIPPER_ITEM_DELAY_MS"
	EnvSettleDelay   = "CLIPPER_SETTLE_DELAY_MS"
	EnvDisplayDelay  = "CLIPPER_DISPLAY_DELAY_MS"
	EnvHistoryCap    = "CLIPPER_HISTORY_CAP"

	// Database filename
	DBFilename = "clipper.db"

	DefaultRemoteConcurrency = 3
	DefaultHistoryCap        = 50

	DefaultAutosaveDelay = 800 * time.Millisecond
	DefaultItemDelay     = 500 * time.Millisecond
	DefaultSettleDelay   = 1500 * time.Millisecond
	DefaultDisplayDelay  = 3 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	PreviewDir() string
	OutputDir() string
	Headless() bool
	FFmpegPath() string
	RemoteURL() string
	RemoteToken() string
	RemoteEnabled() bool
	RemoteConcurrency() int
	AutosaveDelay() time.Duration
	ItemDelay() time.Duration
	SettleDelay() time.Duration
	DisplayDelay() time.Duration
	HistoryCap() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool
	ffmpeg   string

	remoteURL         string
	remoteToken       string
	remoteConcurrency int

	autosaveDelay time.Duration
	itemDelay     time.Duration
	settleDelay   time.Duration
	displayDelay  time.Duration
	historyCap    int
}

// New loads .env from the working directory, when present, and then reads
// the environment. Variables already set win over the file.
func New() (*EnvConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromEnv()
}

// loadDotEnv tolerates a missing file only.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// FromEnv builds an EnvConfig from the current environment only.
func FromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		remoteConcurrency: DefaultRemoteConcurrency,
		autosaveDelay:     DefaultAutosaveDelay,
		itemDelay:         DefaultItemDelay,
		settleDelay:       DefaultSettleDelay,
		displayDelay:      DefaultDisplayDelay,
		historyCap:        DefaultHistoryCap,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		v, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = v
	}

	cfg.ffmpeg = os.Getenv(EnvFFmpeg)
	cfg.remoteURL = strings.TrimRight(os.Getenv(EnvRemoteURL), "/")
	cfg.remoteToken = os.Getenv(EnvRemoteToken)

	if c := os.Getenv(EnvRemoteConcurrency); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvRemoteConcurrency)
		}
		cfg.remoteConcurrency = n
	}
	if c := os.Getenv(EnvHistoryCap); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvHistoryCap)
		}
		cfg.historyCap = n
	}

	delays := []struct {
		env string
		dst *time.Duration
	}{
		{EnvAutosaveDelay, &cfg.autosaveDelay},
		{EnvItemDelay, &cfg.itemDelay},
		{EnvSettleDelay, &cfg.settleDelay},
		{EnvDisplayDelay, &cfg.displayDelay},
	}
	for _, d := range delays {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative number of milliseconds", d.env)
		}
		*d.dst = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// PreviewDir holds transient preview renders.
func (c *EnvConfig) PreviewDir() string {
	return filepath.Join(c.dataDir, "previews")
}

// OutputDir holds produced clips and downloaded remote artifacts.
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, "outputs")
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

func (c *EnvConfig) RemoteURL() string {
	return c.remoteURL
}

func (c *EnvConfig) RemoteToken() string {
	return c.remoteToken
}

func (c *EnvConfig) RemoteEnabled() bool {
	return c.remoteURL != ""
}

func (c *EnvConfig) RemoteConcurrency() int {
	return c.remoteConcurrency
}

func (c *EnvConfig) AutosaveDelay() time.Duration {
	return c.autosaveDelay
}

func (c *EnvConfig) ItemDelay() time.Duration {
	return c.itemDelay
}

func (c *EnvConfig) SettleDelay() time.Duration {
	return c.settleDelay
}

func (c *EnvConfig) DisplayDelay() time.Duration {
	return c.displayDelay
}

func (c *EnvConfig) HistoryCap() int {
	return c.historyCap
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
