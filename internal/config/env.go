package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader 는 환경 변수를 타입별로 읽는다. 형식이 틀린 값은 기본값으로 넘기지 않고 오류로 모은다.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func newEnvReader(lookup func(string) (string, bool)) *envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envReader{lookup: lookup}
}

// value 는 keys 중 처음으로 비어 있지 않은 값을 찾는다.
func (r *envReader) value(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if v, ok := r.lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return key, v, true
			}
		}
	}
	return "", "", false
}

func (r *envReader) invalid(key, raw, want string) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: expected %s", key, raw, want))
}

func (r *envReader) String(def string, keys ...string) string {
	if _, v, ok := r.value(keys...); ok {
		return v
	}
	return def
}

func (r *envReader) Lower(def string, keys ...string) string {
	return strings.ToLower(r.String(def, keys...))
}

func (r *envReader) Int(key string, def int) int {
	_, raw, ok := r.value(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.invalid(key, raw, "an integer")
		return def
	}
	return n
}

// Count 는 0 이상의 정수만 받는다.
func (r *envReader) Count(key string, def int) int {
	n := r.Int(key, def)
	if n < 0 {
		r.invalid(key, strconv.Itoa(n), "a non-negative integer")
		return def
	}
	return n
}

func (r *envReader) Float(key string, def float64) float64 {
	_, raw, ok := r.value(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.invalid(key, raw, "a number")
		return def
	}
	return f
}

func (r *envReader) Bool(key string, def bool) bool {
	_, raw, ok := r.value(key)
	if !ok {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	case "0", "f", "false", "n", "no", "off":
		return false
	}
	r.invalid(key, raw, "a boolean")
	return def
}

func (r *envReader) Duration(key string, def time.Duration) time.Duration {
	_, raw, ok := r.value(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		r.invalid(key, raw, "a positive duration")
		return def
	}
	return d
}

// List 는 쉼표나 공백으로 구분된 값을 나눈다.
func (r *envReader) List(keys ...string) []string {
	_, raw, ok := r.value(keys...)
	if !ok {
		return nil
	}
	return strings.FieldsFunc(raw, func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
	})
}

func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}

func maskSecret(value string) string {
	switch n := len(value); {
	case n == 0:
		return "<missing>"
	case n <= 4:
		return strings.Repeat("*", n)
	default:
		return value[:2] + "***" + value[n-2:]
	}
}

// MaskURL 은 접속 URL 의 비밀번호를 가린다.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.5-flash"
	}
	return "gpt-4o-mini"
}
