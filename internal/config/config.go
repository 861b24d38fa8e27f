package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	API           APIConfig           `toml:"api"`
	Fetch         FetchConfig         `toml:"fetch"`
	Analysis      AnalysisConfig      `toml:"analysis"`
	Retry         RetryConfig         `toml:"retry"`
	Endpoints     []EndpointConfig    `toml:"endpoints"`
	Repositories  []RepositoryConfig  `toml:"repositories"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	OutputDir    string `toml:"output_dir"`
	DatabasePath string `toml:"database_path"`
	Concurrency  int    `toml:"concurrency"`
	GitHubToken  string `toml:"github_token"`
}

// APIConfig holds Azure OpenAI call settings
type APIConfig struct {
	Model               string        `toml:"model"`
	APIVersion          string        `toml:"api_version"`
	MaxCompletionTokens int           `toml:"max_completion_tokens"`
	RequestTimeout      time.Duration `toml:"request_timeout"`
}

// FetchConfig bounds repository content collection
type FetchConfig struct {
	CacheDir    string `toml:"cache_dir"`
	MaxFiles    int    `toml:"max_files"`
	MaxFileSize int    `toml:"max_file_size"`
}

// AnalysisConfig selects what gets asked
type AnalysisConfig struct {
	Categories []string `toml:"categories"`
	Turns      int      `toml:"turns"`
}

// RetryConfig controls the dispatcher's retry policy
type RetryConfig struct {
	MaxAttempts    int           `toml:"max_attempts"`
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	Jitter         float64       `toml:"jitter"`
}

// EndpointConfig declares one regional API target. Key and BaseURL fall
// back to AZURE_OPENAI_KEY_<NAME> / AZURE_OPENAI_ENDPOINT_<NAME> env vars.
type EndpointConfig struct {
	Name    string `toml:"name"`
	Key     string `toml:"key"`
	BaseURL string `toml:"base_url"`
}

// RepositoryConfig declares one repository to analyze
type RepositoryConfig struct {
	Owner    string `toml:"owner"`
	Name     string `toml:"name"`
	MaxFiles int    `toml:"max_files"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// DefaultCategories is the analysis taxonomy used when none is configured
var DefaultCategories = []string{
	"architecture",
	"performance",
	"security",
	"testing",
	"domain",
	"distributed",
	"maintainability",
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			OutputDir:    "llm_debates",
			DatabasePath: filepath.Join(home, ".credit-burner", "burner.db"),
			Concurrency:  8,
		},
		API: APIConfig{
			Model:               "o1",
			APIVersion:          "2024-12-01-preview",
			MaxCompletionTokens: 4000,
			RequestTimeout:      5 * time.Minute,
		},
		Fetch: FetchConfig{
			CacheDir:    filepath.Join(home, ".credit-burner", "repos"),
			MaxFiles:    50,
			MaxFileSize: 100000,
		},
		Analysis: AnalysisConfig{
			Categories: DefaultCategories,
			Turns:      20,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     60 * time.Second,
			Jitter:         0.2,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
// Endpoint credentials and the GitHub token are resolved from the
// environment when not set in the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.resolveEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, domain.NewConfigError("parse %s: %v", path, err)
	}

	cfg.General.OutputDir = ExpandPath(cfg.General.OutputDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.Fetch.CacheDir = ExpandPath(cfg.Fetch.CacheDir)
	cfg.resolveEnv()

	return cfg, nil
}

// resolveEnv fills blanks from the environment
func (c *Config) resolveEnv() {
	if c.General.GitHubToken == "" {
		c.General.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.Key == "" {
			ep.Key = os.Getenv("AZURE_OPENAI_KEY_" + envSuffix(ep.Name))
		}
		if ep.BaseURL == "" {
			ep.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT_" + envSuffix(ep.Name))
		}
	}
}

// envSuffix converts an endpoint name like "east-us" to "EAST_US"
func envSuffix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Validate checks the configuration is usable before any task runs
func (c *Config) Validate() error {
	if c.General.Concurrency < 1 {
		return domain.NewConfigError("concurrency must be >= 1, got %d", c.General.Concurrency)
	}
	if c.Analysis.Turns < 1 {
		return domain.NewConfigError("turns must be >= 1, got %d", c.Analysis.Turns)
	}
	if len(c.Analysis.Categories) == 0 {
		return domain.NewConfigError("at least one analysis category is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return domain.NewConfigError("retry max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	for _, ep := range c.Endpoints {
		if ep.Name == "" {
			return domain.NewConfigError("endpoint entry requires a name")
		}
	}
	for _, rc := range c.Repositories {
		if err := c.domainRepository(rc).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DomainEndpoints converts configured endpoints, dropping entries that
// still have no resolvable base URL
func (c *Config) DomainEndpoints() []domain.Endpoint {
	var eps []domain.Endpoint
	for _, ep := range c.Endpoints {
		if ep.BaseURL == "" {
			continue
		}
		eps = append(eps, domain.Endpoint{Name: ep.Name, Key: ep.Key, BaseURL: ep.BaseURL})
	}
	return eps
}

// domainRepository converts a config entry, applying the global
// max_files default when the entry does not set its own
func (c *Config) domainRepository(r RepositoryConfig) domain.Repository {
	maxFiles := r.MaxFiles
	if maxFiles == 0 {
		maxFiles = c.Fetch.MaxFiles
	}
	return domain.Repository{Owner: r.Owner, Name: r.Name, MaxFiles: maxFiles}
}

// DomainRepositories converts all configured repositories
func (c *Config) DomainRepositories() []domain.Repository {
	repos := make([]domain.Repository, 0, len(c.Repositories))
	for _, rc := range c.Repositories {
		repos = append(repos, c.domainRepository(rc))
	}
	return repos
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "credit-burner", "config.toml")
}
