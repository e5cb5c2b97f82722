package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type PDFConfig struct {
	Enabled         bool      `yaml:"enabled"`
	ChromePath      string    `yaml:"chrome_path"`
	ChromeNoSandbox bool      `yaml:"chrome_no_sandbox"`
	TimeoutSecs     int       `yaml:"timeout_secs"`
	Paper           PaperSize `yaml:"paper"`
	Margin          float64   `yaml:"margin"`
}

// Config is the full application configuration read from YAML.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Fetch struct {
		Timeout          time.Duration `yaml:"timeout"`
		MaxNotebookBytes int64         `yaml:"max_notebook_bytes"`
		UserAgent        string        `yaml:"user_agent"`
	} `yaml:"fetch"`

	Render struct {
		Style      string `yaml:"style"`
		MathJaxURL string `yaml:"mathjax_url"`
	} `yaml:"render"`

	PDF PDFConfig `yaml:"pdf"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// DefaultMathJaxURL is the MathJax bundle referenced by rendered documents.
const DefaultMathJaxURL = "https://cdnjs.cloudflare.com/ajax/libs/mathjax/2.7.7/MathJax.js?config=TeX-AMS_CHTML-full,Safe"

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8000"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Fetch.Timeout = 20 * time.Second
	cfg.Fetch.MaxNotebookBytes = 50 << 20
	cfg.Fetch.UserAgent = "nbrender/1.0"
	cfg.Render.Style = "github"
	cfg.Render.MathJaxURL = DefaultMathJaxURL
	cfg.PDF.TimeoutSecs = 30
	cfg.PDF.Paper = PaperSize{Width: 8.27, Height: 11.69}
	cfg.PDF.Margin = 0.4
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	return cfg
}

// Load reads the file named by CONFIG_PATH, or returns the defaults when the
// variable is unset.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		cfg := DefaultConfig()
		mustValidate(cfg)
		return cfg
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path on top of the defaults. It panics when
// the file cannot be read or holds invalid values.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to read config %q: %v", path, err))
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse config %q: %v", path, err))
	}
	mustValidate(cfg)
	return cfg
}

func mustValidate(cfg Config) {
	if err := validate(cfg); err != nil {
		panic("invalid config: " + err.Error())
	}
}

func validate(cfg Config) error {
	if cfg.Server.Port == "" || !strings.HasPrefix(cfg.Server.Port, ":") {
		return fmt.Errorf("server.port must look like \":8000\", got %q", cfg.Server.Port)
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.Fetch.MaxNotebookBytes <= 0 {
		return fmt.Errorf("fetch.max_notebook_bytes must be positive")
	}
	if cfg.PDF.Enabled {
		if cfg.PDF.TimeoutSecs <= 0 {
			return fmt.Errorf("pdf.timeout_secs must be positive")
		}
		if cfg.PDF.Paper.Width <= 0 || cfg.PDF.Paper.Height <= 0 {
			return fmt.Errorf("pdf.paper must have a positive width and height")
		}
		if cfg.PDF.Margin < 0 {
			return fmt.Errorf("pdf.margin must not be negative")
		}
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}
