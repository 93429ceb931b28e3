// Package config loads the RBAC core's configuration surface from plain
// environment variables using getEnv/getEnvInt helpers, no framework.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/terraconstructs/accessguard/internal/rbac/events"
)

// Config holds the RBAC.* configuration keys the core reads at startup.
type Config struct {
	// TableName is the KV table the core reads and writes.
	TableName string

	// Region selects the backend region/endpoint.
	Region string

	// EventPolicy governs the Event Emitter (Disabled/NoChanges/AllChanges).
	EventPolicy events.Policy

	// BatchSize bounds the concurrency controller's batch-write chunking.
	BatchSize int

	// RetryBudget bounds the total time spent draining unprocessed batch
	// items or retrying a throttled call before surfacing Unavailable.
	RetryBudget time.Duration
}

// Load reads configuration from environment variables with fallback
// defaults.
func Load() (*Config, error) {
	policy, ok := events.ParsePolicy(getEnv("RBAC_EVENT_POLICY", "AllChanges"))
	if !ok {
		return nil, fmt.Errorf("RBAC_EVENT_POLICY: unrecognized policy %q", os.Getenv("RBAC_EVENT_POLICY"))
	}

	cfg := &Config{
		TableName:   getEnv("RBAC_TABLE_NAME", "rbac-core"),
		Region:      getEnv("RBAC_REGION", "us-east-1"),
		EventPolicy: policy,
		BatchSize:   getEnvInt("RBAC_BATCH_SIZE", 25),
		RetryBudget: getEnvDuration("RBAC_RETRY_BUDGET", 30*time.Second),
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("RBAC_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
