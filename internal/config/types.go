package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// 프롬프트 모드 상수입니다.
const (
	PromptModeStructured = "structured"
	PromptModeNarrative  = "narrative"
)

// LLM 공급자 상수입니다.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DB 드라이버 상수입니다.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LLMConfig: 외부 채팅 완성 API 설정입니다.
type LLMConfig struct {
	Provider        string
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
}

// Timeout: 요청 타임아웃을 반환합니다.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// PromptConfig: 프롬프트 렌더링 설정입니다.
type PromptConfig struct {
	DefaultMode string
	Currency    string
}

// LedgerConfig: IP별 일일 사용량 제한 설정입니다.
type LedgerConfig struct {
	DailyLimit     int
	Timezone       string
	RetentionDays  int
	PurgeInterval  time.Duration
	TrustForwarded bool
}

// Location: 날짜 경계 계산에 쓰는 타임존을 반환합니다.
func (l LedgerConfig) Location() *time.Location {
	if l.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GuardConfig: 입력 검증 설정입니다.
type GuardConfig struct {
	Enabled bool
	// Threshold 가 0 이면 규칙 파일의 threshold 를 쓴다.
	Threshold       float64
	RulepacksDir    string
	CacheMaxSize    int
	CacheTTLSeconds int
}

// ResultCacheConfig: 계산 결과 캐시 설정입니다.
type ResultCacheConfig struct {
	Enabled    bool
	URL        string
	TTLSeconds int
	MaxEntries int
}

// TTL: 캐시 만료 시간을 반환합니다.
func (r ResultCacheConfig) TTL() time.Duration {
	return time.Duration(max(1, r.TTLSeconds)) * time.Second
}

// LoggingConfig: 로깅 설정입니다.
type LoggingConfig struct {
	Level      string
	Format     string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig: HTTP 서버 설정입니다.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
}

// GRPCConfig: gRPC 헬스 서버 설정입니다.
type GRPCConfig struct {
	Host    string
	Port    int
	Enabled bool
}

// HTTPAuthConfig: 관리용 엔드포인트 API 키 설정입니다.
type HTTPAuthConfig struct {
	APIKeys []string
}

// HTTPRateLimitConfig: 분당 요청 제한 설정입니다.
type HTTPRateLimitConfig struct {
	RequestsPerMinute int
	CacheSize         int
	CacheTTLSeconds   int
}

// TelemetryConfig: OpenTelemetry 설정입니다.
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64
}

// DatabaseConfig: 사용량 원장 DB 연결 설정입니다.
type DatabaseConfig struct {
	Driver                 string
	Host                   string
	Port                   int
	Name                   string
	User                   string
	Password               string
	SSLMode                string
	SQLitePath             string
	MinPool                int
	MaxPool                int
	ConnMaxLifetimeMinutes int
	ConnMaxIdleTimeMinutes int
}

// DSN: 드라이버에 맞는 접속 문자열을 반환합니다.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}
	return u.String()
}

// Config: 애플리케이션 전체 설정입니다.
type Config struct {
	LLM           LLMConfig
	Prompt        PromptConfig
	Ledger        LedgerConfig
	Guard         GuardConfig
	ResultCache   ResultCacheConfig
	Logging       LoggingConfig
	HTTP          HTTPConfig
	GRPC          GRPCConfig
	HTTPAuth      HTTPAuthConfig
	HTTPRateLimit HTTPRateLimitConfig
	Database      DatabaseConfig
	Telemetry     TelemetryConfig
}

// ParsePromptMode 는 모드 문자열을 정규화한다. 알 수 없는 값이면 false.
func ParsePromptMode(value string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case PromptModeStructured, "json":
		return PromptModeStructured, true
	case PromptModeNarrative, "text", "markdown":
		return PromptModeNarrative, true
	default:
		return "", false
	}
}

func (c *Config) validateEnums() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported db driver: %s", c.Database.Driver)
	}
	if _, ok := ParsePromptMode(c.Prompt.DefaultMode); !ok {
		return fmt.Errorf("unsupported prompt mode: %s", c.Prompt.DefaultMode)
	}
	return nil
}
