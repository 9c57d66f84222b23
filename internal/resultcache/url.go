package resultcache

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const defaultPort = "6379"

type connInfo struct {
	addr     string
	username string
	password string
	selectDB int
	useTLS   bool
}

// isMemoryURL 은 인메모리 백엔드를 가리키는 URL 인지 확인한다.
func isMemoryURL(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || strings.HasPrefix(strings.ToLower(trimmed), "memory://")
}

// parseConnURL 은 redis://, rediss://, valkey:// URL 또는 host:port 주소를 해석한다.
func parseConnURL(raw string) (connInfo, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return connInfo{}, errors.New("cache url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		return parseAddr(trimmed)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return connInfo{}, fmt.Errorf("parse cache url: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "redis", "rediss", "valkey", "valkeys":
	default:
		return connInfo{}, fmt.Errorf("unsupported cache scheme: %s", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return connInfo{}, errors.New("cache host missing")
	}
	port := parsed.Port()
	if port == "" {
		port = defaultPort
	}

	selectDB := 0
	if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
		db, convErr := strconv.Atoi(path)
		if convErr != nil || db < 0 {
			return connInfo{}, fmt.Errorf("invalid cache db: %q", path)
		}
		selectDB = db
	}

	info := connInfo{
		addr:     net.JoinHostPort(host, port),
		selectDB: selectDB,
		useTLS:   scheme == "rediss" || scheme == "valkeys",
	}
	if parsed.User != nil {
		info.username = parsed.User.Username()
		info.password, _ = parsed.User.Password()
	}
	return info, nil
}

func parseAddr(addr string) (connInfo, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		var addrErr *net.AddrError
		if !errors.As(err, &addrErr) {
			return connInfo{}, fmt.Errorf("invalid cache address: %w", err)
		}
		switch addrErr.Err {
		case "missing port in address":
			host = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
			port = defaultPort
		case "too many colons in address":
			host = addr
			port = defaultPort
		default:
			return connInfo{}, fmt.Errorf("invalid cache address: %w", err)
		}
	}
	if strings.TrimSpace(host) == "" {
		return connInfo{}, errors.New("cache host missing")
	}
	return connInfo{addr: net.JoinHostPort(host, port)}, nil
}
