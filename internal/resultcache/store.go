// Package resultcache 는 모델 응답을 보관하는 결과 캐시다.
package resultcache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/park285/dong-server/internal/cache"
	"github.com/park285/dong-server/internal/config"
)

// ErrDisabled 는 캐시가 꺼져 있을 때의 오류다.
var ErrDisabled = errors.New("result cache disabled")

const keyPrefix = "dong:result:"

type backend int

const (
	backendMemory backend = iota
	backendValkey
)

// Store 는 Valkey 또는 인메모리 TTL 캐시 기반 결과 저장소다.
type Store struct {
	backend backend
	client  valkey.Client
	memory  *cache.TTLCache[string, []byte]
	ttl     time.Duration
	logger  *slog.Logger
}

// New 는 설정의 URL 에 맞는 백엔드로 저장소를 만든다.
// 캐시가 비활성이면 nil, nil 을 반환한다.
func New(cfg config.ResultCacheConfig, logger *slog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	if isMemoryURL(cfg.URL) {
		logger.Info("result_cache_backend", "backend", "memory", "max_entries", cfg.MaxEntries, "ttl", cfg.TTL())
		return NewMemory(cfg.MaxEntries, cfg.TTL(), logger), nil
	}

	conn, err := parseConnURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if conn.useTLS {
		host, _, splitErr := net.SplitHostPort(conn.addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parse cache addr: %w", splitErr)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		TLSConfig:    tlsConfig,
		Username:     conn.username,
		Password:     conn.password,
		InitAddress:  []string{conn.addr},
		SelectDB:     conn.selectDB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	logger.Info("result_cache_backend", "backend", "valkey", "url", config.MaskURL(cfg.URL), "ttl", cfg.TTL())
	return &Store{
		backend: backendValkey,
		client:  client,
		ttl:     cfg.TTL(),
		logger:  logger,
	}, nil
}

// NewMemory 는 인메모리 백엔드 저장소를 만든다.
func NewMemory(maxEntries int, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backendMemory,
		memory:  cache.NewTTLCache[string, []byte](maxEntries, ttl),
		ttl:     ttl,
		logger:  logger,
	}
}

// Backend 는 백엔드 이름을 반환한다.
func (s *Store) Backend() string {
	if s == nil {
		return "disabled"
	}
	if s.backend == backendValkey {
		return "valkey"
	}
	return "memory"
}

// Get 은 저장된 응답을 반환한다. 없으면 false.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, ErrDisabled
	}
	if s.backend == backendMemory {
		value, ok := s.memory.Get(key)
		if !ok {
			return nil, false, nil
		}
		return clone(value), true, nil
	}

	cmd := s.client.B().Get().Key(keyPrefix + key).Build()
	raw, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached result: %w", err)
	}

	value, err := decompress(raw)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set 은 응답을 TTL 과 함께 저장한다.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s == nil {
		return ErrDisabled
	}
	if s.backend == backendMemory {
		s.memory.Set(key, clone(value))
		return nil
	}

	packed, err := compress(value)
	if err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(keyPrefix + key).Value(valkey.BinaryString(packed)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set cached result: %w", err)
	}
	return nil
}

// Ping 은 백엔드 연결을 확인한다.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return ErrDisabled
	}
	if s.backend == backendMemory {
		return nil
	}
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}
	return nil
}

// Close 는 연결을 종료한다.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.backend == backendValkey && s.client != nil {
		s.client.Close()
		return
	}
	if s.memory != nil {
		s.memory.Clear()
	}
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
