package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// QueueConfig holds the tunables of the sync queue and its background processes.
type QueueConfig struct {
	MaxRetries       int           `env:"SYNC_MAX_RETRIES,default=3"`
	BackoffBase      time.Duration `env:"SYNC_BACKOFF_BASE,default=1m"`
	StuckTimeout     time.Duration `env:"SYNC_STUCK_TIMEOUT,default=30m"`
	RetentionDays    int           `env:"SYNC_RETENTION_DAYS,default=30"`
	ReaperSchedule   string        `env:"SYNC_REAPER_SCHEDULE,default=@every 5m"`
	CleanupSchedule  string        `env:"SYNC_CLEANUP_SCHEDULE,default=@daily"`
	PollInterval     time.Duration `env:"SYNC_POLL_INTERVAL,default=5s"`
	MaxPollInterval  time.Duration `env:"SYNC_MAX_POLL_INTERVAL,default=1m"`
	Workers          int           `env:"SYNC_WORKERS,default=4"`
	Schedules        string        `env:"SYNC_SCHEDULES"`
	HTTPPort         string        `env:"HTTP_PORT,default=8080"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
	ExecutionTimeout time.Duration `env:"SYNC_EXECUTION_TIMEOUT,default=25m"`
}

// SyncSchedule is a recurring trigger for one tenant/connector slot.
type SyncSchedule struct {
	TenantID    string
	ConnectorID string
	Spec        string
}

// DefaultQueueConfig returns the values used when nothing is configured.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetries:       3,
		BackoffBase:      time.Minute,
		StuckTimeout:     30 * time.Minute,
		RetentionDays:    30,
		ReaperSchedule:   "@every 5m",
		CleanupSchedule:  "@daily",
		PollInterval:     5 * time.Second,
		MaxPollInterval:  time.Minute,
		Workers:          4,
		HTTPPort:         "8080",
		ShutdownTimeout:  15 * time.Second,
		ExecutionTimeout: 25 * time.Minute,
	}
}

// to help with testing
var envProcess = envconfig.Process

func LoadQueueConfigFromEnv(ctx context.Context) (*QueueConfig, error) {
	var cfg QueueConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MaxBackoffBase bounds SYNC_BACKOFF_BASE.
const MaxBackoffBase = 24 * time.Hour

// Validate reports every invalid field in one error.
func (c *QueueConfig) Validate() error {
	var errors []string

	if c.MaxRetries < 1 {
		errors = append(errors, "SYNC_MAX_RETRIES must be at least 1")
	}

	if c.BackoffBase <= 0 {
		errors = append(errors, "SYNC_BACKOFF_BASE must be positive")
	} else if c.BackoffBase > MaxBackoffBase {
		errors = append(errors, fmt.Sprintf("SYNC_BACKOFF_BASE must not exceed %s", MaxBackoffBase))
	}

	if c.StuckTimeout <= 0 {
		errors = append(errors, "SYNC_STUCK_TIMEOUT must be positive")
	}

	if c.RetentionDays < 1 {
		errors = append(errors, "SYNC_RETENTION_DAYS must be at least 1")
	}

	if c.PollInterval <= 0 {
		errors = append(errors, "SYNC_POLL_INTERVAL must be positive")
	}

	if c.MaxPollInterval < c.PollInterval {
		errors = append(errors, "SYNC_MAX_POLL_INTERVAL must not be below SYNC_POLL_INTERVAL")
	}

	if c.Workers < 1 {
		errors = append(errors, "SYNC_WORKERS must be at least 1")
	}

	// A sync that outlives the reaper timeout would be failed underneath its worker.
	if c.ExecutionTimeout <= 0 || c.ExecutionTimeout >= c.StuckTimeout {
		errors = append(errors, "SYNC_EXECUTION_TIMEOUT must be positive and below SYNC_STUCK_TIMEOUT")
	}

	if _, err := c.ParseSchedules(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// ParseSchedules decodes SYNC_SCHEDULES, a semicolon separated list of
// "tenant:connector=<cron spec>" entries.
func (c *QueueConfig) ParseSchedules() ([]SyncSchedule, error) {
	if strings.TrimSpace(c.Schedules) == "" {
		return nil, nil
	}

	var schedules []SyncSchedule
	for _, entry := range strings.Split(c.Schedules, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		slot, spec, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(spec) == "" {
			return nil, fmt.Errorf("SYNC_SCHEDULES entry %q must look like tenant:connector=<cron>", entry)
		}

		tenantID, connectorID, ok := strings.Cut(strings.TrimSpace(slot), ":")
		if !ok || tenantID == "" || connectorID == "" {
			return nil, fmt.Errorf("SYNC_SCHEDULES entry %q has an invalid tenant:connector slot", entry)
		}

		schedules = append(schedules, SyncSchedule{
			TenantID:    tenantID,
			ConnectorID: connectorID,
			Spec:        strings.TrimSpace(spec),
		})
	}

	return schedules, nil
}
