// Package config loads and validates the service configuration.
//
// Load order: built-in defaults, optional YAML file, optional .env file,
// then ARANDU_-prefixed environment variables. Later sources win.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for API server, workers, and pipelines.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Storage  StorageConfig  `yaml:"storage"`
	Papers   PapersConfig   `yaml:"papers"`
	RAG      RAGConfig      `yaml:"rag"`
	LLM      LLMConfig      `yaml:"llm"`
	Crossref CrossrefConfig `yaml:"crossref"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP surface settings.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	APIBaseURL string `yaml:"api_base_url"`
	WebOrigin  string `yaml:"web_origin"`
}

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	// Path is the sqlite database file, or ":memory:" for tests.
	Path string `yaml:"path"`
}

// QueueConfig holds the durable work-queue settings.
type QueueConfig struct {
	NATSURL string `yaml:"nats_url"`
	// Stream is the JetStream work-queue stream holding both subjects.
	Stream string `yaml:"stream"`
	// JobTimeoutSeconds bounds one reproduction job end to end.
	JobTimeoutSeconds int `yaml:"job_timeout_seconds"`
	// ReviewTimeoutSeconds bounds one review pipeline run.
	ReviewTimeoutSeconds int `yaml:"review_timeout_seconds"`
}

// SandboxConfig holds the container execution constraints. These are
// security-critical: the executor refuses to launch when they are unsafe.
type SandboxConfig struct {
	DockerBinary       string  `yaml:"docker_binary"`
	User               string  `yaml:"user"`
	UID                int     `yaml:"uid"`
	CPULimit           float64 `yaml:"cpu_limit"`
	MemoryLimit        string  `yaml:"memory_limit"`
	NetworkMode        string  `yaml:"network_mode"`
	ReadOnlyRootfs     bool    `yaml:"read_only_rootfs"`
	ExecTimeoutSeconds int     `yaml:"exec_timeout_seconds"`
	MaxLogSizeBytes    int     `yaml:"max_log_size_bytes"`
	BaseImage          string  `yaml:"base_image"`
}

// StorageConfig holds filesystem roots for job artifacts and scratch space.
type StorageConfig struct {
	ArtifactsBasePath string `yaml:"artifacts_base_path"`
	TempReposPath     string `yaml:"temp_repos_path"`
	ReviewsBasePath   string `yaml:"reviews_base_path"`
	// TempRepoMaxAgeHours controls the janitor sweep of orphaned clone dirs.
	TempRepoMaxAgeHours int `yaml:"temp_repo_max_age_hours"`
}

// PapersConfig holds paper hosting settings.
type PapersConfig struct {
	BasePath     string `yaml:"base_path"`
	MaxPDFSizeMB int    `yaml:"max_pdf_size_mb"`
	// FetchTimeoutSeconds bounds URL-sourced PDF downloads.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
}

// RAGConfig holds hybrid-retrieval weights and limits.
type RAGConfig struct {
	Enabled        bool    `yaml:"enabled"`
	HybridAlpha    float64 `yaml:"hybrid_alpha"`
	TopK           int     `yaml:"top_k"`
	MinScore       float64 `yaml:"min_score"`
	EmbeddingModel string  `yaml:"embedding_model"`
}

// LLMConfig holds narrative-generation settings. Disabled by default; the
// deterministic heuristic narrator is always available.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// CrossrefConfig holds the optional external metadata lookup.
type CrossrefConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mailto  string `yaml:"mailto"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file, and the process environment.
func Load(path string) (*Config, error) {
	// .env first so the env override pass below can see its values.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
