package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate checks the configuration and returns all violations joined into a
// single error. The sandbox rules mirror the executor's preflight checks so
// a bad deployment fails at startup instead of at first job.
func (c *Config) Validate() error {
	var problems []error

	if c.Sandbox.User == "" || c.Sandbox.User == "root" {
		problems = append(problems, fmt.Errorf("sandbox.user must be a non-root user, got %q", c.Sandbox.User))
	}
	if c.Sandbox.UID == 0 {
		problems = append(problems, errors.New("sandbox.uid must not be 0"))
	}
	if c.Sandbox.CPULimit <= 0 {
		problems = append(problems, fmt.Errorf("sandbox.cpu_limit must be positive, got %v", c.Sandbox.CPULimit))
	}
	if c.Sandbox.MemoryLimit == "" {
		problems = append(problems, errors.New("sandbox.memory_limit must be set"))
	} else if _, err := ParseMemoryLimit(c.Sandbox.MemoryLimit); err != nil {
		problems = append(problems, fmt.Errorf("sandbox.memory_limit: %w", err))
	}
	if c.Sandbox.NetworkMode != "none" && c.Sandbox.NetworkMode != "bridge" {
		problems = append(problems, fmt.Errorf("sandbox.network_mode must be none or bridge, got %q", c.Sandbox.NetworkMode))
	}
	if c.Sandbox.ExecTimeoutSeconds <= 0 {
		problems = append(problems, errors.New("sandbox.exec_timeout_seconds must be positive"))
	}
	if c.Sandbox.MaxLogSizeBytes <= 0 {
		problems = append(problems, errors.New("sandbox.max_log_size_bytes must be positive"))
	}

	if c.Queue.JobTimeoutSeconds <= 0 {
		problems = append(problems, errors.New("queue.job_timeout_seconds must be positive"))
	}
	if c.Queue.ReviewTimeoutSeconds <= 0 {
		problems = append(problems, errors.New("queue.review_timeout_seconds must be positive"))
	}

	if c.Papers.MaxPDFSizeMB <= 0 {
		problems = append(problems, errors.New("papers.max_pdf_size_mb must be positive"))
	}
	if c.RAG.HybridAlpha < 0 || c.RAG.HybridAlpha > 1 {
		problems = append(problems, fmt.Errorf("rag.hybrid_alpha must be in [0,1], got %v", c.RAG.HybridAlpha))
	}

	return errors.Join(problems...)
}

// ParseMemoryLimit converts a docker-style memory string (suffix g, m, k, or
// raw bytes) to a byte count.
func ParseMemoryLimit(limit string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(limit))
	if s == "" {
		return 0, errors.New("empty memory limit")
	}
	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'g':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	case 'm':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'k':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q", limit)
	}
	if n <= 0 {
		return 0, fmt.Errorf("memory limit must be positive, got %q", limit)
	}
	return n * multiplier, nil
}
