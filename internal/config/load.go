package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	configOnce  sync.Once
	configValue *Config
	configErr   error
)

// Load 는 .env 를 반영한 뒤 환경 변수로 설정을 만든다. 프로세스당 한 번만 읽는다.
func Load() (*Config, error) {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue, configErr = buildConfig(os.LookupEnv)
	})
	return configValue, configErr
}

// ProvideConfig 는 설정을 로드하고 검증한다.
func ProvideConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 는 설정 유효성을 검사한다.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.validateEnums(); err != nil {
		return err
	}
	if c.Guard.Threshold < 0 {
		return fmt.Errorf("guard threshold must not be negative: %v", c.Guard.Threshold)
	}
	if c.Ledger.DailyLimit <= 0 {
		return fmt.Errorf("daily limit must be positive: %d", c.Ledger.DailyLimit)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm model is required")
	}
	if c.Database.Driver == DriverSQLite && strings.TrimSpace(c.Database.SQLitePath) == "" {
		return errors.New("sqlite path is required")
	}
	if c.Ledger.Timezone != "" {
		if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
			return fmt.Errorf("invalid ledger timezone %q: %w", c.Ledger.Timezone, err)
		}
	}
	return nil
}

// LogEnvStatus 는 환경 설정 상태를 로그로 남긴다.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	logger.Debug(
		"env_status",
		"env_file", envFilePresent(),
		"llm_provider", cfg.LLM.Provider,
		"llm_base_url", cfg.LLM.BaseURL,
		"llm_api_key", maskSecret(cfg.LLM.APIKey),
		"model", cfg.LLM.Model,
		"timeout", cfg.LLM.TimeoutSeconds,
		"prompt_mode", cfg.Prompt.DefaultMode,
		"daily_limit", cfg.Ledger.DailyLimit,
		"ledger_timezone", cfg.Ledger.Location().String(),
		"db_driver", cfg.Database.Driver,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
		"result_cache", cfg.ResultCache.Enabled,
		"cache_url", MaskURL(cfg.ResultCache.URL),
		"guard", cfg.Guard.Enabled,
	)

	if cfg.LLM.APIKey == "" {
		logger.Error("env_missing_llm_api_key")
	}
}

func buildConfig(lookup func(string) (string, bool)) (*Config, error) {
	env := newEnvReader(lookup)
	provider := env.Lower(ProviderOpenAI, "LLM_PROVIDER")
	cfg := &Config{
		LLM: LLMConfig{
			Provider:        provider,
			BaseURL:         env.String("", "LLM_BASE_URL", "OPENAI_BASE_URL"),
			APIKey:          env.String("", "LLM_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY"),
			Model:           env.String(defaultModel(provider), "LLM_MODEL"),
			Temperature:     env.Float("LLM_TEMPERATURE", 0.2),
			MaxOutputTokens: env.Count("LLM_MAX_TOKENS", 4096),
			TimeoutSeconds:  env.Count("LLM_TIMEOUT", 60),
		},
		Prompt: PromptConfig{
			DefaultMode: env.Lower(PromptModeStructured, "PROMPT_MODE"),
			Currency:    env.String("تومان", "PROMPT_CURRENCY"),
		},
		Ledger: LedgerConfig{
			DailyLimit:     env.Int("DAILY_LIMIT", 100),
			Timezone:       env.String("UTC", "LEDGER_TIMEZONE"),
			RetentionDays:  env.Count("LEDGER_RETENTION_DAYS", 90),
			PurgeInterval:  env.Duration("LEDGER_PURGE_INTERVAL", time.Hour),
			TrustForwarded: env.Bool("TRUST_X_FORWARDED_FOR", true),
		},
		Guard: GuardConfig{
			Enabled:         env.Bool("GUARD_ENABLED", true),
			Threshold:       env.Float("GUARD_THRESHOLD", 0),
			RulepacksDir:    env.String("", "RULEPACKS_DIR"),
			CacheMaxSize:    env.Int("GUARD_CACHE_SIZE", 10000),
			CacheTTLSeconds: env.Int("GUARD_CACHE_TTL", 3600),
		},
		ResultCache: ResultCacheConfig{
			Enabled:    env.Bool("RESULT_CACHE_ENABLED", false),
			URL:        env.String("memory://", "CACHE_URL"),
			TTLSeconds: env.Count("RESULT_CACHE_TTL_SECONDS", 3600),
			MaxEntries: max(1, env.Count("RESULT_CACHE_MAX_ENTRIES", 1000)),
		},
		Logging: LoggingConfig{
			Level:      env.String("info", "LOG_LEVEL"),
			Format:     env.Lower("text", "LOG_FORMAT"),
			LogDir:     env.String("", "LOG_DIR"),
			MaxSizeMB:  env.Int("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: env.Int("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: env.Int("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   env.Bool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         env.String("0.0.0.0", "HTTP_HOST"),
			Port:         env.Int("HTTP_PORT", 8000),
			HTTP2Enabled: env.Bool("HTTP2_ENABLED", true),
		},
		GRPC: GRPCConfig{
			Host:    env.String("127.0.0.1", "GRPC_HOST"),
			Port:    env.Int("GRPC_PORT", 8001),
			Enabled: env.Bool("GRPC_ENABLED", false),
		},
		HTTPAuth: HTTPAuthConfig{
			APIKeys: env.List("HTTP_API_KEYS", "HTTP_API_KEY"),
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			RequestsPerMinute: env.Count("HTTP_RATE_LIMIT_RPM", 30),
			CacheSize:         max(1, env.Count("HTTP_RATE_LIMIT_CACHE_SIZE", 10000)),
			CacheTTLSeconds:   max(1, env.Count("HTTP_RATE_LIMIT_CACHE_TTL_SECONDS", 120)),
		},
		Database: DatabaseConfig{
			Driver:                 env.Lower(DriverPostgres, "DB_DRIVER"),
			Host:                   env.String("localhost", "DB_HOST"),
			Port:                   env.Int("DB_PORT", 5432),
			Name:                   env.String("dong", "DB_NAME"),
			User:                   env.String("dong", "DB_USER"),
			Password:               env.String("", "DB_PASSWORD"),
			SSLMode:                env.String("", "DB_SSLMODE"),
			SQLitePath:             env.String("dong.db", "DB_SQLITE_PATH"),
			MinPool:                env.Int("DB_MIN_POOL", 1),
			MaxPool:                env.Int("DB_MAX_POOL", 10),
			ConnMaxLifetimeMinutes: env.Count("DB_CONN_MAX_LIFETIME_MINUTES", 60),
			ConnMaxIdleTimeMinutes: env.Count("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
		Telemetry: TelemetryConfig{
			Enabled:        env.Bool("OTEL_ENABLED", false),
			ServiceName:    env.String("dong-server", "OTEL_SERVICE_NAME"),
			ServiceVersion: env.String("1.0.0", "OTEL_SERVICE_VERSION"),
			Environment:    env.String("production", "OTEL_ENVIRONMENT"),
			OTLPEndpoint:   env.String("jaeger:4317", "OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPInsecure:   env.Bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRate:     env.Float("OTEL_SAMPLE_RATE", 1.0),
		},
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envFilePresent() bool {
	_, err := os.Stat(".env")
	return err == nil
}
