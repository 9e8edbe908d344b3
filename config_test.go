package httpsession

import (
	"testing"
	"time"
)

func TestProcessEnvAppliesKnownKeys(t *testing.T) {
	env := NewEnvFromMap("HTTPSESSION_", map[string]string{
		"HTTPSESSION_HEARTBEAT_INTERVAL_MS": "5000",
		"HTTPSESSION_LOCKOUT_TIME_MS":       "60000",
		"HTTPSESSION_ALLOW_MULTIPLE_REQUESTS": "true",
		"HTTPSESSION_MAX_REDIRECTS":          "3",
		"UNRELATED_KEY":                      "ignored",
	})

	cfg := NewSessionConfig("test")
	cfg.ProcessEnv(env, nil)

	if cfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("expected HeartbeatInterval=5s, got %v", cfg.HeartbeatInterval)
	}
	if cfg.LockoutTime != time.Minute {
		t.Fatalf("expected LockoutTime=1m, got %v", cfg.LockoutTime)
	}
	if !cfg.AllowMultipleRequests {
		t.Fatalf("expected AllowMultipleRequests=true")
	}
	if cfg.MaxRedirects != 3 {
		t.Fatalf("expected MaxRedirects=3, got %d", cfg.MaxRedirects)
	}
}

func TestProcessEnvSkipsUnknownKeysWithoutAborting(t *testing.T) {
	env := NewEnvFromMap("", map[string]string{
		"SOME_UNKNOWN_KEY": "1",
		"MAX_REDIRECTS":    "7",
	})

	cfg := NewSessionConfig("test")
	cfg.ProcessEnv(env, nil)

	if cfg.MaxRedirects != 7 {
		t.Fatalf("expected MaxRedirects=7 despite an unknown sibling key, got %d", cfg.MaxRedirects)
	}
}
