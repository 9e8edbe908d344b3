package httpsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ------------------------------------------------------------------------

// Handle is the leased object a Session hands to its LoginFunc, LogoutFunc,
// HeartbeatFunc, and to callers of requestSession. It is a single-use
// capability: once Release or Invalidate has run, Do refuses further work;
// the state accessors, Ref and ReportLockout do not check the lease.
type Handle struct {
	mu          sync.Mutex
	ref         string
	session     *HttpSession
	released    bool
	invalidated bool
	state       map[string]any
}

// ------------------------------------------------------------------------

func newHandle(session *HttpSession) *Handle {
	return &Handle{
		ref:     uuid.New().String(),
		session: session,
		state:   map[string]any{},
	}
}

// ------------------------------------------------------------------------

// Ref returns the handle's opaque correlation token, suitable for log
// lines tying together the requests a single lease made.
func (h *Handle) Ref() string {
	return h.ref
}

// ------------------------------------------------------------------------

// Do executes d through the session's Executor, merging in the session's
// default headers. It fails with ErrHandleReleased/ErrHandleInvalid if
// the lease is no longer good.
func (h *Handle) Do(ctx context.Context, d *RequestDescriptor) (*Response, error) {
	if err := h.checkUsable(); err != nil {
		return nil, decorate("handle.Do", KindHandleReleased, d.URL, 0, err, d.snapshot())
	}

	merged := *d
	merged.Header = mergeHeaders(h.session.config.DefaultHeaders, d.Header)

	return h.session.executor.Do(ctx, &merged)
}

// ------------------------------------------------------------------------

// SetState stashes a value under key for later retrieval by GetState or
// Serialize, e.g. an auth token a LoginFunc obtained.
func (h *Handle) SetState(key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state[key] = value
}

// GetState retrieves a value previously stored with SetState.
func (h *Handle) GetState(key string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.state[key]
	return v, ok
}

// Serialize returns a shallow copy of the handle's stashed state, safe for
// a caller to inspect or log without racing further SetState calls.
func (h *Handle) Serialize() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any, len(h.state))
	for k, v := range h.state {
		out[k] = v
	}

	return out
}

// ------------------------------------------------------------------------

// Release ends this lease without disturbing the session's credentials; a
// later requestSession may reuse the existing login. Calling Release more
// than once is a no-op.
func (h *Handle) Release() {
	h.mu.Lock()
	already := h.released
	h.released = true
	h.mu.Unlock()

	if !already {
		h.session.onHandleReleased(h, false)
	}
}

// Invalidate ends this lease and forces the session to log in again before
// it next becomes Ready, e.g. because the caller detected the remote end
// silently expired the session.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	already := h.released || h.invalidated
	h.released = true
	h.invalidated = true
	h.mu.Unlock()

	if !already {
		h.session.onHandleReleased(h, true)
	}
}

// ReportLockout tells the session the remote end locked it out for
// duration; the session will refuse new login attempts until that time
// passes.
func (h *Handle) ReportLockout(duration time.Duration) {
	h.session.enterLockout(duration)
}

// WasReleased reports whether Release or Invalidate has already run.
func (h *Handle) WasReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.released
}

// ------------------------------------------------------------------------

func (h *Handle) checkUsable() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.invalidated:
		return ErrHandleInvalid
	case h.released:
		return ErrHandleReleased
	default:
		return nil
	}
}
