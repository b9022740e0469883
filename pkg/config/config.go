package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Capacity modes for targeted reoptimization.
const (
	CapacityModeRemaining = "remaining"
	CapacityModeNominal   = "nominal"
)

// Forecast modes select the demand forecaster implementation.
const (
	ForecastModeZero       = "zero"
	ForecastModeHistorical = "historical"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Forecast  ForecastConfig
	Queue     QueueConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the allocation pipeline.
type SchedulerConfig struct {
	SemesterLabel         string
	RunTimeout            time.Duration
	SolverTimeBudget      time.Duration
	PriorityThreshold     float64
	PriorityWeight        float64
	Population            int
	Generations           int
	ReoptPopulation       int
	ReoptGenerations      int
	MutationRate          float64
	UnassignProbability   float64
	Workers               int
	Seed                  int64
	CapacityMode          string
	EnforcePrerequisites  bool
	EarlyMorningStart     string
	EarlyMorningEnd       string
	Cron                  string
	VerifyAfterSolve      bool
	MaxReoptimizeStudents int
}

// ForecastConfig selects and caches the demand forecaster.
type ForecastConfig struct {
	Mode     string
	CacheTTL time.Duration
}

// QueueConfig configures the asynchronous reoptimization worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		SemesterLabel:         v.GetString("SCHEDULER_SEMESTER_LABEL"),
		RunTimeout:            parseDuration(v.GetString("SCHEDULER_RUN_TIMEOUT"), 2*time.Minute),
		SolverTimeBudget:      parseDuration(v.GetString("SCHEDULER_SOLVER_TIME_BUDGET"), 10*time.Second),
		PriorityThreshold:     v.GetFloat64("SCHEDULER_PRIORITY_CGPA_THRESHOLD"),
		PriorityWeight:        v.GetFloat64("SCHEDULER_PRIORITY_WEIGHT"),
		Population:            v.GetInt("SCHEDULER_GA_POPULATION"),
		Generations:           v.GetInt("SCHEDULER_GA_GENERATIONS"),
		ReoptPopulation:       v.GetInt("SCHEDULER_REOPT_POPULATION"),
		ReoptGenerations:      v.GetInt("SCHEDULER_REOPT_GENERATIONS"),
		MutationRate:          v.GetFloat64("SCHEDULER_GA_MUTATION_RATE"),
		UnassignProbability:   v.GetFloat64("SCHEDULER_GA_UNASSIGN_PROBABILITY"),
		Workers:               v.GetInt("SCHEDULER_GA_WORKERS"),
		Seed:                  v.GetInt64("SCHEDULER_GA_SEED"),
		CapacityMode:          normalizeCapacityMode(v.GetString("SCHEDULER_REOPT_CAPACITY_MODE")),
		EnforcePrerequisites:  v.GetBool("SCHEDULER_ENFORCE_PREREQUISITES"),
		EarlyMorningStart:     v.GetString("SCHEDULER_EARLY_MORNING_START"),
		EarlyMorningEnd:       v.GetString("SCHEDULER_EARLY_MORNING_END"),
		Cron:                  strings.TrimSpace(v.GetString("SCHEDULER_CRON")),
		VerifyAfterSolve:      v.GetBool("SCHEDULER_VERIFY_AFTER_SOLVE"),
		MaxReoptimizeStudents: v.GetInt("SCHEDULER_MAX_REOPT_STUDENTS"),
	}

	cfg.Forecast = ForecastConfig{
		Mode:     strings.ToLower(strings.TrimSpace(v.GetString("FORECAST_MODE"))),
		CacheTTL: parseDuration(v.GetString("FORECAST_CACHE_TTL"), 6*time.Hour),
	}

	cfg.Queue = QueueConfig{
		Workers:    v.GetInt("REOPT_QUEUE_WORKERS"),
		BufferSize: v.GetInt("REOPT_QUEUE_BUFFER"),
		MaxRetries: v.GetInt("REOPT_QUEUE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("REOPT_QUEUE_RETRY_DELAY"), 5*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "section_allocator")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_SEMESTER_LABEL", "Spring")
	v.SetDefault("SCHEDULER_RUN_TIMEOUT", "2m")
	v.SetDefault("SCHEDULER_SOLVER_TIME_BUDGET", "10s")
	v.SetDefault("SCHEDULER_PRIORITY_CGPA_THRESHOLD", 3.5)
	v.SetDefault("SCHEDULER_PRIORITY_WEIGHT", 1.0)
	v.SetDefault("SCHEDULER_GA_POPULATION", 30)
	v.SetDefault("SCHEDULER_GA_GENERATIONS", 60)
	v.SetDefault("SCHEDULER_REOPT_POPULATION", 20)
	v.SetDefault("SCHEDULER_REOPT_GENERATIONS", 20)
	v.SetDefault("SCHEDULER_GA_MUTATION_RATE", 0.15)
	v.SetDefault("SCHEDULER_GA_UNASSIGN_PROBABILITY", 0.3)
	v.SetDefault("SCHEDULER_GA_WORKERS", 4)
	v.SetDefault("SCHEDULER_GA_SEED", 0)
	v.SetDefault("SCHEDULER_REOPT_CAPACITY_MODE", CapacityModeRemaining)
	v.SetDefault("SCHEDULER_ENFORCE_PREREQUISITES", false)
	v.SetDefault("SCHEDULER_EARLY_MORNING_START", "08:00")
	v.SetDefault("SCHEDULER_EARLY_MORNING_END", "09:00")
	v.SetDefault("SCHEDULER_CRON", "")
	v.SetDefault("SCHEDULER_VERIFY_AFTER_SOLVE", true)
	v.SetDefault("SCHEDULER_MAX_REOPT_STUDENTS", 500)

	v.SetDefault("FORECAST_MODE", ForecastModeHistorical)
	v.SetDefault("FORECAST_CACHE_TTL", "6h")

	v.SetDefault("REOPT_QUEUE_WORKERS", 1)
	v.SetDefault("REOPT_QUEUE_BUFFER", 16)
	v.SetDefault("REOPT_QUEUE_RETRIES", 3)
	v.SetDefault("REOPT_QUEUE_RETRY_DELAY", "5s")
}

func normalizeCapacityMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CapacityModeNominal:
		return CapacityModeNominal
	default:
		return CapacityModeRemaining
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
