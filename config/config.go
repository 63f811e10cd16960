// Package config loads ctrldoc settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ctrldoc/storage"
)

// Config is the top-level configuration.
type Config struct {
	DataDir  string             `yaml:"data_dir"`
	Storage  storage.Layout     `yaml:"storage"`
	Chrome   ChromeConfig       `yaml:"chrome"`
	Fallback FallbackConfig     `yaml:"fallback"`
	Extract  ExtractConfig      `yaml:"extract"`
	Ledger   LedgerConfig       `yaml:"ledger"`
	Blob     storage.BlobConfig `yaml:"blob"`
	Batch    BatchConfig        `yaml:"batch"`
}

// ChromeConfig controls the primary renderer.
type ChromeConfig struct {
	Bin            string        `yaml:"bin"`
	Remote         string        `yaml:"remote"`
	NoSandbox      bool          `yaml:"no_sandbox"`
	Disabled       bool          `yaml:"disabled"`
	ContentTimeout time.Duration `yaml:"content_timeout"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`
}

// FallbackConfig controls the text compositor.
type FallbackConfig struct {
	WrapWidth  int     `yaml:"wrap_width"`
	BreakSpace float64 `yaml:"break_space"`
}

// ExtractConfig bounds document extraction.
type ExtractConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

// LedgerConfig locates the render ledger. Path defaults to
// data_dir/ledger.db.
type LedgerConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// BatchConfig bounds batch conversions.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Environment variables that override file values.
const (
	EnvDataDir     = "CTRLDOC_DATA_DIR"
	EnvChromePath  = "CHROME_PATH"
	EnvChromeURL   = "CTRLDOC_CHROME_URL"
	EnvNoSandbox   = "CTRLDOC_NO_SANDBOX"
	EnvLedgerPath  = "CTRLDOC_LEDGER"
	EnvConcurrency = "CTRLDOC_CONCURRENCY"
	EnvBlobConn    = "CTRLDOC_BLOB_CONNECTION_STRING"
	EnvBlobBucket  = "CTRLDOC_BLOB_CONTAINER"
	EnvBlobPrefix  = "CTRLDOC_BLOB_PREFIX"
)

// LoadFile reads a YAML configuration file, then applies environment
// overrides and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given:
// defaults plus environment overrides.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	c.loadEnv()
	c.applyDefaults()
	return c.Blob.Finalize(&storage.BlobEnv{
		ContainerName:    EnvBlobBucket,
		ConnectionString: EnvBlobConn,
		Prefix:           EnvBlobPrefix,
	})
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvChromePath); v != "" {
		c.Chrome.Bin = v
	}
	if v := os.Getenv(EnvChromeURL); v != "" {
		c.Chrome.Remote = v
	}
	if v := os.Getenv(EnvNoSandbox); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chrome.NoSandbox = b
		}
	}
	if v := os.Getenv(EnvLedgerPath); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Batch.Concurrency = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	def := storage.DefaultLayout(c.DataDir)
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = def.UploadsDir
	}
	if c.Storage.PDFsDir == "" {
		c.Storage.PDFsDir = def.PDFsDir
	}
	if c.Chrome.ContentTimeout <= 0 {
		c.Chrome.ContentTimeout = 30 * time.Second
	}
	if c.Chrome.RenderTimeout <= 0 {
		c.Chrome.RenderTimeout = 120 * time.Second
	}
	if c.Fallback.WrapWidth <= 0 {
		c.Fallback.WrapWidth = 95
	}
	if c.Fallback.BreakSpace <= 0 {
		c.Fallback.BreakSpace = 80
	}
	if c.Extract.MaxFileSize <= 0 {
		c.Extract.MaxFileSize = 50 << 20
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.DataDir, "ledger.db")
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = 2
	}
}
