package config

import (
	"os"
	"path/filepath"
)

// Defaults returns the built-in configuration. Filesystem roots default to a
// per-host scratch area under the system temp directory so a fresh checkout
// can run without any provisioning.
func Defaults() *Config {
	base := filepath.Join(os.TempDir(), "arandu")
	return &Config{
		Server: ServerConfig{
			Addr:       ":8000",
			APIBaseURL: "http://localhost:8000",
			WebOrigin:  "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(base, "arandu.db"),
		},
		Queue: QueueConfig{
			NATSURL:              "nats://localhost:4222",
			Stream:               "ARANDU_JOBS",
			JobTimeoutSeconds:    3600,
			ReviewTimeoutSeconds: 90,
		},
		Sandbox: SandboxConfig{
			DockerBinary:       "docker",
			User:               "aranduuser",
			UID:                1000,
			CPULimit:           1.0,
			MemoryLimit:        "2g",
			NetworkMode:        "none",
			ReadOnlyRootfs:     true,
			ExecTimeoutSeconds: 1800,
			MaxLogSizeBytes:    1 << 20,
			BaseImage:          "python:3.11-slim",
		},
		Storage: StorageConfig{
			ArtifactsBasePath:   filepath.Join(base, "artifacts"),
			TempReposPath:       filepath.Join(base, "repos"),
			ReviewsBasePath:     filepath.Join(base, "reviews"),
			TempRepoMaxAgeHours: 24,
		},
		Papers: PapersConfig{
			BasePath:            filepath.Join(base, "papers"),
			MaxPDFSizeMB:        25,
			FetchTimeoutSeconds: 30,
		},
		RAG: RAGConfig{
			Enabled:        true,
			HybridAlpha:    0.5,
			TopK:           5,
			MinScore:       0.1,
			EmbeddingModel: "gemini-embedding-001",
		},
		LLM: LLMConfig{
			Enabled: false,
			Model:   "gemini-2.0-flash",
		},
		Crossref: CrossrefConfig{
			Enabled: false,
			Mailto:  "ops@arandu.dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
