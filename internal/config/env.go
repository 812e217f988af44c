package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides applies ARANDU_-prefixed environment variables on top of
// the loaded configuration. Only variables that are set are applied.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Addr, "ARANDU_SERVER_ADDR")
	setString(&cfg.Server.APIBaseURL, "ARANDU_API_BASE_URL")
	setString(&cfg.Server.WebOrigin, "ARANDU_WEB_ORIGIN")

	setString(&cfg.Database.Path, "ARANDU_DATABASE_PATH")

	setString(&cfg.Queue.NATSURL, "ARANDU_NATS_URL")
	setString(&cfg.Queue.Stream, "ARANDU_QUEUE_STREAM")
	setInt(&cfg.Queue.JobTimeoutSeconds, "ARANDU_JOB_TIMEOUT")
	setInt(&cfg.Queue.ReviewTimeoutSeconds, "ARANDU_REVIEW_TIMEOUT")

	setString(&cfg.Sandbox.DockerBinary, "ARANDU_DOCKER_BINARY")
	setString(&cfg.Sandbox.User, "ARANDU_SANDBOX_USER")
	setInt(&cfg.Sandbox.UID, "ARANDU_SANDBOX_UID")
	setFloat(&cfg.Sandbox.CPULimit, "ARANDU_CPU_LIMIT")
	setString(&cfg.Sandbox.MemoryLimit, "ARANDU_MEMORY_LIMIT")
	setString(&cfg.Sandbox.NetworkMode, "ARANDU_NETWORK_MODE")
	setBool(&cfg.Sandbox.ReadOnlyRootfs, "ARANDU_READ_ONLY_ROOTFS")
	setInt(&cfg.Sandbox.ExecTimeoutSeconds, "ARANDU_EXEC_TIMEOUT")
	setInt(&cfg.Sandbox.MaxLogSizeBytes, "ARANDU_MAX_LOG_SIZE")
	setString(&cfg.Sandbox.BaseImage, "ARANDU_BASE_IMAGE")

	setString(&cfg.Storage.ArtifactsBasePath, "ARANDU_ARTIFACTS_PATH")
	setString(&cfg.Storage.TempReposPath, "ARANDU_TEMP_REPOS_PATH")
	setString(&cfg.Storage.ReviewsBasePath, "ARANDU_REVIEWS_PATH")
	setInt(&cfg.Storage.TempRepoMaxAgeHours, "ARANDU_TEMP_REPO_MAX_AGE_HOURS")

	setString(&cfg.Papers.BasePath, "ARANDU_PAPERS_PATH")
	setInt(&cfg.Papers.MaxPDFSizeMB, "ARANDU_MAX_PDF_SIZE_MB")
	setInt(&cfg.Papers.FetchTimeoutSeconds, "ARANDU_PDF_FETCH_TIMEOUT")

	setBool(&cfg.RAG.Enabled, "ARANDU_RAG_ENABLED")
	setFloat(&cfg.RAG.HybridAlpha, "ARANDU_RAG_HYBRID_ALPHA")
	setInt(&cfg.RAG.TopK, "ARANDU_RAG_TOP_K")
	setFloat(&cfg.RAG.MinScore, "ARANDU_RAG_MIN_SCORE")
	setString(&cfg.RAG.EmbeddingModel, "ARANDU_EMBEDDING_MODEL")

	setBool(&cfg.LLM.Enabled, "ARANDU_LLM_ENABLED")
	setString(&cfg.LLM.APIKey, "ARANDU_LLM_API_KEY")
	setString(&cfg.LLM.Model, "ARANDU_LLM_MODEL")

	setBool(&cfg.Crossref.Enabled, "ARANDU_CROSSREF_ENABLED")
	setString(&cfg.Crossref.Mailto, "ARANDU_CROSSREF_MAILTO")

	setString(&cfg.Logging.Level, "ARANDU_LOG_LEVEL")
	setString(&cfg.Logging.Format, "ARANDU_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
