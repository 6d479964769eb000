package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for specharvest
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Index     IndexConfig     `mapstructure:"index"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Merge     MergeConfig     `mapstructure:"merge"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"` // empty disables auth on /api
}

// IndexConfig describes the index file grammar.
type IndexConfig struct {
	FileName      string `mapstructure:"file_name"`
	HeadingMarker string `mapstructure:"heading_marker"`
	Extension     string `mapstructure:"extension"`
	// Keywords, Include and Exclude narrow the parsed link set before fetching.
	Keywords []string `mapstructure:"keywords"`
	Include  []string `mapstructure:"include"`
	Exclude  []string `mapstructure:"exclude"`
}

func (c IndexConfig) Normalize() IndexConfig {
	if strings.TrimSpace(c.FileName) == "" {
		c.FileName = "llms.txt"
	}
	if c.HeadingMarker == "" {
		c.HeadingMarker = "## "
	}
	c.Extension = strings.ToLower(strings.TrimSpace(c.Extension))
	if c.Extension == "" {
		c.Extension = ".md"
	}
	if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	return c
}

// FetchConfig controls document retrieval.
type FetchConfig struct {
	Type            string           `mapstructure:"type"` // http or chromedp
	Concurrency     int              `mapstructure:"concurrency"`
	Timeout         time.Duration    `mapstructure:"timeout"`
	Pause           time.Duration    `mapstructure:"pause"`
	UserAgent       string           `mapstructure:"user_agent"`
	MaxContentBytes int64            `mapstructure:"max_content_bytes"`
	HostPolicy      HostPolicyConfig `mapstructure:"host_policy"`
}

const (
	DefaultConcurrency     = 5
	DefaultFetchTimeout    = 30 * time.Second
	DefaultMaxContentBytes = 10 << 20
	DefaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

func (c FetchConfig) Normalize() FetchConfig {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Type == "" {
		c.Type = "http"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.Pause < 0 {
		c.Pause = 0
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxContentBytes <= 0 {
		c.MaxContentBytes = DefaultMaxContentBytes
	}
	c.HostPolicy = c.HostPolicy.Normalize()
	return c
}

func (c FetchConfig) Validate() error {
	switch c.Type {
	case "http", "chromedp":
	default:
		return fmt.Errorf("fetch.type %q not supported (http, chromedp)", c.Type)
	}
	return c.HostPolicy.Validate()
}

// MergeConfig controls the header of merged documents.
type MergeConfig struct {
	OpenAPIVersion    string `mapstructure:"openapi_version"`
	DocVersion        string `mapstructure:"doc_version"`
	ServerURL         string `mapstructure:"server_url"`
	ServerDescription string `mapstructure:"server_description"`
}

func (c MergeConfig) Normalize() MergeConfig {
	if c.OpenAPIVersion == "" {
		c.OpenAPIVersion = "3.1.0"
	}
	if c.DocVersion == "" {
		c.DocVersion = "1.0.0"
	}
	if c.ServerURL == "" {
		c.ServerURL = "https://api.example.com"
	}
	if c.ServerDescription == "" {
		c.ServerDescription = "Default server"
	}
	return c
}

// OutputConfig locates generated files.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig contains run state persistence settings
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // inmemory or redis
	Redis   RedisConfig `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "inmemory":
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.backend %q not supported (inmemory, redis)", s.Backend)
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// ScheduleConfig lists documentation sites refreshed periodically.
type ScheduleConfig struct {
	Interval time.Duration    `mapstructure:"interval"`
	Targets  []ScheduleTarget `mapstructure:"targets"`
}

// ScheduleTarget is one scheduled site.
type ScheduleTarget struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	Cron    string `mapstructure:"cron"`
}

func (c ScheduleConfig) Normalize() ScheduleConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	for i := range c.Targets {
		c.Targets[i].Name = strings.TrimSpace(c.Targets[i].Name)
		c.Targets[i].BaseURL = strings.TrimSpace(c.Targets[i].BaseURL)
		if strings.TrimSpace(c.Targets[i].Cron) == "" {
			c.Targets[i].Cron = "@daily"
		}
		if c.Targets[i].Name == "" {
			c.Targets[i].Name = c.Targets[i].BaseURL
		}
	}
	return c
}

func (c ScheduleConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Targets))
	for _, t := range c.Targets {
		if t.BaseURL == "" {
			return fmt.Errorf("schedule target %q: base_url required", t.Name)
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("schedule target %q defined twice", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Default returns a normalised configuration usable without a config file.
func Default() *Config {
	cfg := &Config{
		General: GeneralConfig{LogLevel: "info"},
		Server:  ServerConfig{Address: ":10001"},
		Output:  OutputConfig{Dir: "data"},
		Storage: StorageConfig{Backend: "inmemory", Redis: RedisConfig{Timeout: 5 * time.Second, TTL: 24 * time.Hour}},
	}
	cfg.Fetch.Pause = 100 * time.Millisecond
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	c.Index = c.Index.Normalize()
	c.Fetch = c.Fetch.Normalize()
	c.Merge = c.Merge.Normalize()
	c.Schedule = c.Schedule.Normalize()
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = "data"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "inmemory"
	}
	if c.Storage.Redis.TTL <= 0 {
		c.Storage.Redis.TTL = 24 * time.Hour
	}
	if c.Server.Address == "" {
		c.Server.Address = ":10001"
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	return c.Schedule.Validate()
}

// LoadConfig loads config from file and SPECHARVEST_* environment variables.
// A missing config file is not an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("index.file_name", "llms.txt")
	v.SetDefault("index.heading_marker", "## ")
	v.SetDefault("index.extension", ".md")
	v.SetDefault("fetch.type", "http")
	v.SetDefault("fetch.concurrency", DefaultConcurrency)
	v.SetDefault("fetch.timeout", DefaultFetchTimeout)
	v.SetDefault("fetch.pause", 100*time.Millisecond)
	v.SetDefault("fetch.max_content_bytes", DefaultMaxContentBytes)
	v.SetDefault("merge.openapi_version", "3.1.0")
	v.SetDefault("merge.doc_version", "1.0.0")
	v.SetDefault("output.dir", "data")
	v.SetDefault("storage.backend", "inmemory")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.ttl", 24*time.Hour)
	v.SetDefault("telemetry.enabled", false)

	if path == "" {
		v.AddConfigPath("./config") // path to look for the config file in
		v.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)                      // bin/
		v.AddConfigPath(filepath.Join(exeDir, "..")) // repo root
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SPECHARVEST")
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)

	v.AutomaticEnv() // read in environment variables that match (SPECHARVEST_*)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
