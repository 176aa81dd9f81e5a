// Package config provides configuration for the Framecast Agent. Values come
// from an optional TOML file with environment variable overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort     = 8799
	DefaultLogLevel = "info"
	DefaultDataDir  = ".framecast"

	// Environment variable names
	EnvPort        = "FRAMECAST_PORT"
	EnvLogLevel    = "FRAMECAST_LOG_LEVEL"
	EnvDataDir     = "FRAMECAST_DATA_DIR"
	EnvConfigFile  = "FRAMECAST_CONFIG"
	EnvFFmpegPath  = "FRAMECAST_FFMPEG"
	EnvFFprobePath = "FRAMECAST_FFPROBE"

	// Database filename
	DBFilename = "framecast.db"

	// Config filename inside the data directory
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	OutputDir() string
	FFmpegPath() string
	FFprobePath() string
}

// fileConfig is the TOML document shape.
type fileConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	DataDir  string `toml:"data_dir"`
	Output   struct {
		Dir string `toml:"dir"`
	} `toml:"output"`
	FFmpeg struct {
		Path      string `toml:"path"`
		ProbePath string `toml:"probe_path"`
	} `toml:"ffmpeg"`
}

// EnvConfig resolves defaults, then the TOML file, then the environment.
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	outputDir   string
	ffmpegPath  string
	ffprobePath string
}

// New loads the configuration. A missing config file is not an error.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if err := cfg.loadFile(configFilePath(cfg.dataDir)); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFilePath(dataDir string) string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		return filepath.Join(dd, ConfigFilename)
	}
	return filepath.Join(dataDir, ConfigFilename)
}

func (c *EnvConfig) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.Port != 0 {
		if fc.Port < 1 || fc.Port > 65535 {
			return fmt.Errorf("config file %s: port %d out of range", path, fc.Port)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.Output.Dir != "" {
		c.outputDir = fc.Output.Dir
	}
	c.ffmpegPath = fc.FFmpeg.Path
	c.ffprobePath = fc.FFmpeg.ProbePath
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if p := os.Getenv(EnvFFmpegPath); p != "" {
		c.ffmpegPath = p
	}
	if p := os.Getenv(EnvFFprobePath); p != "" {
		c.ffprobePath = p
	}
	return nil
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

// OutputDir returns where finished exports are written
func (c *EnvConfig) OutputDir() string {
	if c.outputDir != "" {
		return c.outputDir
	}
	return filepath.Join(c.dataDir, "exports")
}

// FFmpegPath returns the ffmpeg binary path; empty means PATH lookup
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// FFprobePath returns the ffprobe binary path; empty means PATH lookup
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

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
