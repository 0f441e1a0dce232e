package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/foundry/releasestats/internal/adapters/snapshots"
)

// Environment variables that override values from the config file.
const (
	EnvDSN         = "RELEASE_STATS_DB_DSN"
	EnvGitHubToken = "RELEASE_STATS_GITHUB_TOKEN"
	EnvOutputDir   = "RELEASE_STATS_OUTPUT_DIR"
)

type Config struct {
	Repos     []string        `yaml:"repos"`
	Store     StoreConfig     `yaml:"store"`
	Source    SourceConfig    `yaml:"source"`
	Collector CollectorConfig `yaml:"collector"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SourceConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	UserAgent string        `yaml:"userAgent"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CollectorConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type OutputConfig struct {
	Dir              string  `yaml:"dir"`
	SignaturePattern string  `yaml:"signaturePattern"`
	Headroom         float64 `yaml:"headroom"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type ScheduleConfig struct {
	Collect string `yaml:"collect"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Driver: snapshots.DriverSQLite, DSN: "./data/stats.db"},
		Source: SourceConfig{
			BaseURL:   "https://api.github.com",
			UserAgent: "release-stats",
			Timeout:   30 * time.Second,
		},
		Collector: CollectorConfig{Concurrency: 4},
		Output: OutputConfig{
			Dir:              "./public",
			SignaturePattern: `\.sig$`,
			Headroom:         1.1,
		},
		Server:   ServerConfig{Port: 8080},
		Schedule: ScheduleConfig{Collect: "0 * * * *"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads and parses a YAML config file, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvGitHubToken); v != "" {
		c.Source.Token = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Output.Dir = v
	}
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	if len(c.Repos) == 0 {
		return fmt.Errorf("no repositories configured")
	}
	seen := make(map[string]bool, len(c.Repos))
	for _, repo := range c.Repos {
		if !validRepo(repo) {
			return fmt.Errorf("repository %q is not in owner/repo form", repo)
		}
		if seen[repo] {
			return fmt.Errorf("repository %q listed twice", repo)
		}
		seen[repo] = true
	}

	switch c.Store.Driver {
	case snapshots.DriverSQLite, snapshots.DriverPostgres:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store dsn is empty")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output dir is empty")
	}
	if _, err := regexp.Compile(c.Output.SignaturePattern); err != nil {
		return fmt.Errorf("invalid signature pattern: %w", err)
	}
	if c.Output.Headroom < 1 {
		return fmt.Errorf("headroom %v must be at least 1", c.Output.Headroom)
	}

	if c.Collector.Concurrency < 1 {
		return fmt.Errorf("collector concurrency must be positive")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}

	if c.Schedule.Collect != "" {
		if _, err := cron.ParseStandard(c.Schedule.Collect); err != nil {
			return fmt.Errorf("invalid collect schedule: %w", err)
		}
	}
	return nil
}

// SignatureRegexp returns the compiled signature pattern. Validate has
// already checked that it compiles.
func (c *Config) SignatureRegexp() *regexp.Regexp {
	return regexp.MustCompile(c.Output.SignaturePattern)
}

func validRepo(repo string) bool {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return false
	}
	return !strings.ContainsAny(name, "/ ") && !strings.ContainsAny(owner, " ")
}
