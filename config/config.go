package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shivamshaw23/ridepool/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Solver   SolverConfig
}

// SolverConfig holds every tunable the assignment pipeline exposes to
// an operator (spec.md §6): pooling window, capacity, branch-and-bound
// search limits.
type SolverConfig struct {
	Capacity         int     `mapstructure:"SOLVER_CAPACITY"`
	OmegaSeconds     float64 `mapstructure:"SOLVER_OMEGA_SECONDS"`
	MaxDelaySeconds  float64 `mapstructure:"SOLVER_MAX_DELAY_SECONDS"`
	PruneTopK        int     `mapstructure:"SOLVER_PRUNE_TOP_K"`
	CostPenalty      float64 `mapstructure:"SOLVER_COST_PENALTY"`
	TimeLimitSeconds float64 `mapstructure:"SOLVER_TIME_LIMIT_SECONDS"`
	Gap              float64 `mapstructure:"SOLVER_GAP"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Tunables converts a SolverConfig into the model.Tunables the
// pipeline's stages actually consume.
func (s *SolverConfig) Tunables() model.Tunables {
	return model.Tunables{
		Capacity:         s.Capacity,
		OmegaSeconds:     s.OmegaSeconds,
		MaxDelaySeconds:  s.MaxDelaySeconds,
		PruneTopK:        s.PruneTopK,
		CostPenalty:      s.CostPenalty,
		TimeLimitSeconds: s.TimeLimitSeconds,
		Gap:              s.Gap,
	}
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "hintro")
	viper.SetDefault("POSTGRES_PASSWORD", "hintro_secret")
	viper.SetDefault("POSTGRES_DB", "hintro_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("SOLVER_CAPACITY", 2)
	viper.SetDefault("SOLVER_OMEGA_SECONDS", 600)
	viper.SetDefault("SOLVER_MAX_DELAY_SECONDS", 600)
	viper.SetDefault("SOLVER_PRUNE_TOP_K", 30)
	viper.SetDefault("SOLVER_COST_PENALTY", 1000)
	viper.SetDefault("SOLVER_TIME_LIMIT_SECONDS", 30)
	viper.SetDefault("SOLVER_GAP", 0.001)

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Solver ──────────────────────────────────────────
	cfg.Solver = SolverConfig{
		Capacity:         viper.GetInt("SOLVER_CAPACITY"),
		OmegaSeconds:     viper.GetFloat64("SOLVER_OMEGA_SECONDS"),
		MaxDelaySeconds:  viper.GetFloat64("SOLVER_MAX_DELAY_SECONDS"),
		PruneTopK:        viper.GetInt("SOLVER_PRUNE_TOP_K"),
		CostPenalty:      viper.GetFloat64("SOLVER_COST_PENALTY"),
		TimeLimitSeconds: viper.GetFloat64("SOLVER_TIME_LIMIT_SECONDS"),
		Gap:              viper.GetFloat64("SOLVER_GAP"),
	}

	return cfg, nil
}
