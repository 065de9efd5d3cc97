package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver         string        `env:"DB_DRIVER,default=postgres"`
	SQLitePath     string        `env:"SQLITE_PATH,default=syncqueue.db"`
	User           string        `env:"POSTGRES_USER,default=postgres"`
	Password       string        `env:"POSTGRES_PASSWORD,default=postgres"`
	Host           string        `env:"POSTGRES_HOST,default=postgres"`
	Port           string        `env:"POSTGRES_PORT,default=5432"`
	Database       string        `env:"POSTGRES_DB,default=syncdb"`
	MaxRetries     int           `env:"DB_MAX_RETRIES,default=10"`
	RetryDelay     time.Duration `env:"DB_RETRY_DELAY,default=2s"`
	ConnectTimeout int           `env:"DB_CONNECT_TIMEOUT,default=5"`
	MaxOpenConns   int           `env:"DB_MAX_OPEN_CONNS,default=50"`
	MaxIdleConns   int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	ConnMaxLife    time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`
	LogLevelString string        `env:"DB_LOG_LEVEL,default=warn"`
	LogLevel       logger.LogLevel
}

// pool sizes used when a Config is built by hand without them.
const (
	defaultMaxOpenConns = 50
	defaultMaxIdleConns = 10
	defaultConnMaxLife  = time.Hour
)

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.LogLevel = ParseLogLevel(cfg.LogLevelString)
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	switch cfg.Driver {
	case "", DriverPostgres:
	case DriverSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			errors = append(errors, "SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
		if len(errors) > 0 {
			return fmt.Errorf("%s", strings.Join(errors, "; "))
		}
		return nil
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER must be %q or %q", DriverPostgres, DriverSQLite))
	}

	if strings.TrimSpace(cfg.User) == "" {
		errors = append(errors, "POSTGRES_USER is required")
	}

	if strings.TrimSpace(cfg.Database) == "" {
		errors = append(errors, "POSTGRES_DB is required")
	}

	if strings.TrimSpace(cfg.Host) == "" {
		errors = append(errors, "POSTGRES_HOST is required")
	}

	if strings.TrimSpace(cfg.Port) == "" {
		errors = append(errors, "POSTGRES_PORT is required")
	}
	if cfg.Port != "" {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			errors = append(errors, "POSTGRES_PORT must be a valid number")
		} else if port < 1 || port > 65535 {
			errors = append(errors, "POSTGRES_PORT must be between 1 and 65535")
		}
	}

	if cfg.MaxRetries < 0 {
		errors = append(errors, "DB_MAX_RETRIES must be non-negative")
	}

	if cfg.RetryDelay <= 0 {
		errors = append(errors, "DB_RETRY_DELAY must be positive")
	}

	if cfg.RetryDelay > 10*time.Minute {
		errors = append(errors, "DB_RETRY_DELAY must not exceed 10 minutes")
	}

	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 {
		errors = append(errors, "DB_MAX_OPEN_CONNS and DB_MAX_IDLE_CONNS must be non-negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// DSN renders the libpq keyword/value connection string for cfg.
func (cfg *Config) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host, cfg.User, cfg.Password, cfg.Database, cfg.Port,
	)
	if cfg.ConnectTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", cfg.ConnectTimeout)
	}
	return dsn
}

// ConnectDB opens the configured database, retrying until it answers a ping.
// A nil cfg is loaded from the environment.
func ConnectDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	if cfg == nil {
		loadedCfg, err := LoadConfigFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		cfg = loadedCfg
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
	}

	if cfg.Driver == DriverSQLite {
		return connectSQLite(cfg, gormConfig)
	}

	dsn := cfg.DSN()
	slog.Info("connecting to database", "user", cfg.User, "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)

	for i := 0; i < cfg.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("database connection aborted: %w", err)
		}

		slog.Debug("connecting", "attempt", i+1, "max_attempts", cfg.MaxRetries)

		gdb, err := openPostgres(ctx, dsn, gormConfig)
		if err == nil {
			cfg.applyPool(gdb)
			slog.Info("database connected", "driver", DriverPostgres)
			return gdb, nil
		}

		slog.Warn("database not ready", "reason", simplifyDBError(err), "retry_in", cfg.RetryDelay)

		select {
		case <-time.After(cfg.RetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection aborted: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("database connection failed after %d attempts", cfg.MaxRetries)
}

// openPostgres opens one pool and proves it with a ping.
func openPostgres(ctx context.Context, dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

func (cfg *Config) applyPool(gdb *gorm.DB) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return
	}

	maxOpen, maxIdle, maxLife := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLife
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}
	if maxLife == 0 {
		maxLife = defaultConnMaxLife
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLife)
}

func connectSQLite(cfg *Config, gormConfig *gorm.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(cfg.SQLitePath+"?_busy_timeout=5000&_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}
	// SQLite allows a single writer; one connection keeps transactions serialised.
	sqlDB.SetMaxOpenConns(1)

	slog.Info("database connected", "driver", DriverSQLite, "path", cfg.SQLitePath)
	return gdb, nil
}

// simplifyDBError returns a user-friendly error message
func simplifyDBError(err error) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "password authentication failed"):
		return "invalid database credentials"
	case strings.Contains(msg, "connect"):
		return "cannot reach database server"
	case strings.Contains(msg, "timeout"):
		return "database connection timed out"
	case strings.Contains(msg, "SASL"):
		return "authentication error"
	}

	return "database error"
}

// Convert string to logger.LogLevel
func ParseLogLevel(levelStr string) logger.LogLevel {
	switch strings.ToLower(levelStr) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
