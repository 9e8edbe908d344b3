package httpsession

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ------------------------------------------------------------------------

// LoginFunc performs whatever authentication handshake a session needs,
// using h to issue requests and store credentials/headers for later use.
// It is the one required collaborator a Session cannot supply a sane
// default for.
type LoginFunc func(ctx context.Context, h *Handle) error

// LogoutFunc reverses LoginFunc, e.g. calling a logout endpoint or clearing
// the cookie jar. It is optional; a Session with no LogoutFunc simply
// drops its state on Shutdown.
type LogoutFunc func(ctx context.Context, h *Handle) error

// HeartbeatFunc is invoked periodically while the session is otherwise
// idle, to keep the remote session alive. It is optional.
type HeartbeatFunc func(ctx context.Context, h *Handle) error

// ------------------------------------------------------------------------

// SessionConfig configures one HttpSession. Fields follow the teacher's
// plain-struct configuration style rather than functional options.
type SessionConfig struct {
	Name string // Name identifies the session in logs; purely cosmetic.

	Login     LoginFunc
	Logout    LogoutFunc
	Heartbeat HeartbeatFunc

	// HeartbeatInterval is how often Heartbeat runs while the session is
	// Ready and not otherwise in use. Zero disables heartbeating.
	HeartbeatInterval time.Duration

	// LockoutTime is how long the session waits before allowing another
	// login attempt after the remote end reports a lockout (see
	// Handle.ReportLockout).
	LockoutTime time.Duration

	// AllowMultipleRequests, if true, lets more than one request be in
	// flight through a Ready session at once. If false, requestSession
	// calls queue FIFO and are served one at a time.
	AllowMultipleRequests bool

	// AlwaysRenew, if true, logs the session out as soon as the last active
	// handle releases it (rather than returning to Ready), so the next
	// RequestSession call always starts from a fresh login.
	AlwaysRenew bool

	DefaultHeaders http.Header

	RequestTimeout time.Duration
	MaxRedirects   int

	Logger    Logger
	Transport Transport
	Parser    URLParser
}

// ------------------------------------------------------------------------

// NewSessionConfig returns a SessionConfig with the package's defaults.
// Callers must still set Login before the config is usable.
func NewSessionConfig(name string) *SessionConfig {
	return &SessionConfig{
		Name:              name,
		HeartbeatInterval: 0,
		LockoutTime:       time.Minute,
		DefaultHeaders:    http.Header{},
		RequestTimeout:    defaultRequestTimeout,
		MaxRedirects:      defaultMaxRedirects,
		Logger:            NewNoopLogger(),
	}
}

// ------------------------------------------------------------------------

// EnvConfigSetter applies one environment variable's value to a
// SessionConfig.
type EnvConfigSetter func(c *SessionConfig, val string) error

// SessionEnvMap is the default mapping from environment variable suffix
// (after whatever prefix the caller's Environment was built with) to the
// SessionConfig field it controls. A caller can pass its own map to
// ProcessEnv to extend or override this vocabulary.
var SessionEnvMap = map[string]EnvConfigSetter{
	"HEARTBEAT_INTERVAL_MS": func(c *SessionConfig, val string) error {
		n, err := StrToUInt(val)
		if err != nil {
			return err
		}
		c.HeartbeatInterval = time.Duration(n) * time.Millisecond
		return nil
	},
	"LOCKOUT_TIME_MS": func(c *SessionConfig, val string) error {
		n, err := StrToUInt(val)
		if err != nil {
			return err
		}
		c.LockoutTime = time.Duration(n) * time.Millisecond
		return nil
	},
	"ALLOW_MULTIPLE_REQUESTS": func(c *SessionConfig, val string) error {
		b, err := StrToBool(val)
		if err != nil {
			return err
		}
		c.AllowMultipleRequests = b
		return nil
	},
	"ALWAYS_RENEW": func(c *SessionConfig, val string) error {
		b, err := StrToBool(val)
		if err != nil {
			return err
		}
		c.AlwaysRenew = b
		return nil
	},
	"REQUEST_TIMEOUT_MS": func(c *SessionConfig, val string) error {
		n, err := StrToUInt(val)
		if err != nil {
			return err
		}
		c.RequestTimeout = time.Duration(n) * time.Millisecond
		return nil
	},
	"MAX_REDIRECTS": func(c *SessionConfig, val string) error {
		n, err := StrToUInt(val)
		if err != nil {
			return err
		}
		c.MaxRedirects = int(n)
		return nil
	},
}

// ------------------------------------------------------------------------

// ProcessEnv applies every key in env to c using envMap (or SessionEnvMap if
// envMap is nil), logging and skipping keys it does not recognize or that
// fail to parse rather than aborting the whole pass.
func (c *SessionConfig) ProcessEnv(env Environment, envMap map[string]EnvConfigSetter) {
	if envMap == nil {
		envMap = SessionEnvMap
	}

	for k, v := range env.Values() {
		setter, ok := envMap[k]
		if !ok {
			c.logError(fmt.Errorf("ProcessEnv: unknown environment variable %q", k))
			continue
		}

		if err := setter(c, v); err != nil {
			c.logError(fmt.Errorf("ProcessEnv: %s: %w", k, err))
		}
	}
}

func (c *SessionConfig) logError(err error) {
	if c.Logger != nil {
		c.Logger.LogError(LOG_WARN_LEVEL, err)
	}
}
