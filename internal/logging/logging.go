package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/park285/dong-server/internal/config"
)

const defaultLogFileName = "dong-server.log"

// NewLogger: 표준 출력(tint)에 쓰고, LOG_DIR 가 있으면 회전 파일에도 씁니다.
// 파일 형식은 LOG_FORMAT 을 따릅니다(json 또는 색 없는 text). 만든 로거는 slog 기본 로거가 됩니다.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	handler, file, err := newHandler(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if file != "" {
		logger.Info("file_logging_enabled", "path", file, "format", cfg.Format)
	}
	return logger, nil
}

// Component 는 component 속성이 붙은 하위 로거를 반환한다.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// newHandler 는 콘솔 핸들러와 선택적 파일 핸들러를 조합한다. 파일을 쓰면 그 경로도 돌려준다.
func newHandler(cfg config.LoggingConfig, stdout io.Writer) (slog.Handler, string, error) {
	level := parseLevel(cfg.Level)
	console := tintHandler(stdout, level, false)

	dir := strings.TrimSpace(cfg.LogDir)
	if dir == "" {
		return console, "", nil
	}
	file, err := rotatingFile(dir, cfg)
	if err != nil {
		return nil, "", err
	}

	var fileHandler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		fileHandler = slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level, AddSource: true})
	} else {
		fileHandler = tintHandler(file, level, true)
	}
	return fanout{console, fileHandler}, file.Filename, nil
}

func rotatingFile(dir string, cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if cfg.MaxSizeMB <= 0 || cfg.MaxBackups <= 0 || cfg.MaxAgeDays <= 0 {
		return nil, fmt.Errorf("log rotation needs positive size, backups and age (got %d/%d/%d)",
			cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, defaultLogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	// 첫 로그 전에도 파일이 보이도록 바로 연다.
	if _, err := file.Write(nil); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func tintHandler(w io.Writer, level slog.Level, plain bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		AddSource:  true,
		NoColor:    plain,
	})
}

// parseLevel 은 slog 레벨 표기(예: "debug", "warn+2")와 "warning" 을 받는다. 모르는 값은 info 다.
func parseLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
