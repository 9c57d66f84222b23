package resultcache

import "testing"

func TestParseConnURL(t *testing.T) {
	cases := []struct {
		raw  string
		want connInfo
	}{
		{"redis://localhost", connInfo{addr: "localhost:6379"}},
		{"redis://user:pw@cache:6380/2", connInfo{addr: "cache:6380", username: "user", password: "pw", selectDB: 2}},
		{"rediss://cache.internal", connInfo{addr: "cache.internal:6379", useTLS: true}},
		{"valkey://cache:7000", connInfo{addr: "cache:7000"}},
		{"cache:6390", connInfo{addr: "cache:6390"}},
		{"cache", connInfo{addr: "cache:6379"}},
		{"::1", connInfo{addr: "[::1]:6379"}},
	}
	for _, tc := range cases {
		got, err := parseConnURL(tc.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestParseConnURLErrors(t *testing.T) {
	for _, raw := range []string{"", "redis://", "redis://host/abc", "redis://host/-1", "ftp://host"} {
		if _, err := parseConnURL(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestIsMemoryURL(t *testing.T) {
	if !isMemoryURL("") || !isMemoryURL("memory://") || !isMemoryURL("MEMORY://local") {
		t.Fatalf("expected memory urls")
	}
	if isMemoryURL("redis://localhost") {
		t.Fatalf("redis url treated as memory")
	}
}
