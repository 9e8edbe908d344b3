package httpsession

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ------------------------------------------------------------------------

// inflight is a cancellable one-shot broadcast: one goroutine runs the
// work, every other interested goroutine calls wait and is released once
// finish is called. It stands in for the login/logout "shared promise"
// pattern the original implementation built on JavaScript promises.
type inflight struct {
	done chan struct{}
	err  error
}

func newInflight() *inflight {
	return &inflight{done: make(chan struct{})}
}

func (f *inflight) finish(err error) {
	f.err = err
	close(f.done)
}

func (f *inflight) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ------------------------------------------------------------------------

// HttpSession guards a logical remote session behind a login/logout
// lifecycle: callers borrow it via RequestSession, use the returned Handle
// to issue requests, and give it back with Handle.Release. All mutable
// state lives behind a single mutex, per the concurrency model: there is
// never more than one login or logout in flight, and (unless
// AllowMultipleRequests is set) never more than one request either.
type HttpSession struct {
	mu sync.Mutex

	config   *SessionConfig
	executor *Executor

	state          State
	lastErr        error
	lockedOutUntil time.Time
	activeCount    int

	loginInflight  *inflight
	logoutInflight *inflight

	heartbeatTimer *time.Timer

	queue    *callerQueue
	status   *statusRegistry
	shutdown chan struct{}
}

// ------------------------------------------------------------------------

// NewHttpSession returns a ready, logged-out HttpSession. config.Login must
// be set; everything else falls back to SessionConfig's defaults.
func NewHttpSession(config *SessionConfig) (*HttpSession, error) {
	if config == nil {
		return nil, decorate("session.New", KindValidation, "", 0, fmt.Errorf("config must not be nil"), nil)
	}
	if config.Login == nil {
		return nil, decorate("session.New", KindValidation, "", 0, ErrNoLoginFunc, nil)
	}

	jar := NewCookieJar()
	executor := NewExecutor(config.Transport, jar, config.Parser, config.Logger)

	return &HttpSession{
		config:   config,
		executor: executor,
		state:    StateLoggedOut,
		queue:    newCallerQueue(),
		status:   newStatusRegistry(),
		shutdown: make(chan struct{}),
	}, nil
}

// ------------------------------------------------------------------------

// Status returns a snapshot of the session's current lifecycle state.
func (s *HttpSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// OnStatus registers listener to be called, synchronously, on every state
// transition. The returned function unregisters it.
func (s *HttpSession) OnStatus(listener StatusListener) func() {
	return s.status.subscribe(listener)
}

// ------------------------------------------------------------------------

// RequestSession borrows the session, logging in first if necessary and
// queueing behind any request already in flight when AllowMultipleRequests
// is false. The returned Handle must eventually be released with
// Handle.Release or Handle.Invalidate.
func (s *HttpSession) RequestSession(ctx context.Context) (*Handle, error) {
	const op = "session.RequestSession"

	s.mu.Lock()
	for {
		switch s.state {
		case StateShutDown:
			s.mu.Unlock()
			return nil, decorate(op, KindShutdown, "", 0, ErrSessionShutdown, nil)

		case StateLockedOut:
			wait := time.Until(s.lockedOutUntil)
			s.mu.Unlock()
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-s.shutdown:
					timer.Stop()
					return nil, decorate(op, KindShutdown, "", 0, ErrSessionShutdown, nil)
				}
			}
			s.mu.Lock()
			if s.state == StateLockedOut {
				s.transitionLocked(StateLoggedOut)
			}

		case StateLoggedOut, StateError:
			ok, err := s.loginLocked(ctx)
			if !ok {
				s.mu.Unlock()
				return nil, err
			}

		case StateLoggingIn:
			pending := s.loginInflight
			s.mu.Unlock()
			if err := pending.wait(ctx); err != nil {
				return nil, err
			}
			s.mu.Lock()

		case StateLoggingOut:
			pending := s.logoutInflight
			s.mu.Unlock()
			pending.wait(ctx)
			s.mu.Lock()

		case StateReady, StateInUse:
			if s.config.AllowMultipleRequests || (s.state == StateReady && s.activeCount == 0) {
				s.activeCount++
				s.cancelHeartbeatLocked()
				if s.state != StateInUse {
					s.transitionLocked(StateInUse)
				}
				h := newHandle(s)
				s.mu.Unlock()
				return h, nil
			}

			caller := newQueuedCaller()
			s.queue.push(caller)
			s.mu.Unlock()

			select {
			case <-caller.admit:
				if caller.err != nil {
					return nil, caller.err
				}
				// The releaser transferred its InUse slot directly to us;
				// no need to re-enter the gate.
				return newHandle(s), nil
			case <-ctx.Done():
				s.queue.remove(caller)
				return nil, ctx.Err()
			}

		default:
			s.mu.Unlock()
			return nil, decorate(op, KindInvalidState, "", 0, fmt.Errorf("unexpected state %q", s.state), nil)
		}
	}
}

// ------------------------------------------------------------------------

// loginLocked runs config.Login, sharing the attempt with any other
// goroutine that observes StateLoggingIn while it is running. It must be
// called with s.mu held and always returns with s.mu held: (true, nil) on
// success with the lock held and the state at StateReady, or (false, err)
// on failure with the lock held and the state at StateError.
func (s *HttpSession) loginLocked(ctx context.Context) (bool, error) {
	pending := newInflight()
	s.loginInflight = pending
	s.transitionLocked(StateLoggingIn)
	s.mu.Unlock()

	h := newHandle(s)
	loginErr := s.config.Login(ctx, h)

	s.mu.Lock()
	s.loginInflight = nil

	if loginErr != nil {
		wrapped := decorate("session.login", KindLogin, "", 0, loginErr, nil)
		s.lastErr = wrapped
		s.transitionLocked(StateError)
		pending.finish(wrapped)
		return false, wrapped
	}

	// A fresh login starts with no leases: a handle still outstanding from
	// before (e.g. one that reported a lockout) no longer counts as active.
	s.activeCount = 0
	s.transitionLocked(StateReady)
	s.scheduleHeartbeatLocked()
	pending.finish(nil)

	return true, nil
}

// ------------------------------------------------------------------------

// logoutLocked mirrors loginLocked for config.Logout. If Logout is nil it
// simply transitions straight to StateLoggedOut.
func (s *HttpSession) logoutLocked(ctx context.Context) (bool, error) {
	if s.config.Logout == nil {
		s.transitionLocked(StateLoggedOut)
		return true, nil
	}

	pending := newInflight()
	s.logoutInflight = pending
	s.transitionLocked(StateLoggingOut)
	s.mu.Unlock()

	h := newHandle(s)
	logoutErr := s.config.Logout(ctx, h)

	s.mu.Lock()
	s.logoutInflight = nil

	if logoutErr != nil {
		wrapped := decorate("session.logout", KindLogout, "", 0, logoutErr, nil)
		s.lastErr = wrapped
		s.transitionLocked(StateError)
		pending.finish(wrapped)
		return false, wrapped
	}

	s.transitionLocked(StateLoggedOut)
	pending.finish(nil)

	return true, nil
}

// ------------------------------------------------------------------------

// Logout logs the session out if it is Ready; in any other state (InUse
// included) it is a no-op. The session remains usable afterward: the next RequestSession
// call logs back in.
func (s *HttpSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil
	}

	s.cancelHeartbeatLocked()
	_, err := s.logoutLocked(ctx)
	s.mu.Unlock()

	return err
}

// ------------------------------------------------------------------------

// Shutdown logs the session out (best effort) and permanently moves it to
// StateShutDown, releasing every queued caller with ErrSessionShutdown.
func (s *HttpSession) Shutdown(ctx context.Context) error {
	s.mu.Lock()

	if s.state == StateShutDown {
		s.mu.Unlock()
		return nil
	}

	s.cancelHeartbeatLocked()

	var logoutErr error
	if s.state == StateReady {
		_, logoutErr = s.logoutLocked(ctx)
	}

	s.transitionLocked(StateShutDown)
	close(s.shutdown)
	s.mu.Unlock()

	s.queue.drain(decorate("session.Shutdown", KindShutdown, "", 0, ErrSessionShutdown, nil))

	return logoutErr
}

// ------------------------------------------------------------------------

// enterLockout is called by Handle.ReportLockout. It moves the session to
// StateLockedOut for duration (or for config.LockoutTime if duration is
// zero or negative), cancelling any pending heartbeat.
func (s *HttpSession) enterLockout(duration time.Duration) {
	if duration <= 0 {
		duration = s.config.LockoutTime
	}

	s.mu.Lock()
	s.lockedOutUntil = time.Now().Add(duration)
	s.cancelHeartbeatLocked()
	s.transitionLocked(StateLockedOut)
	s.mu.Unlock()
}

// ------------------------------------------------------------------------

// onHandleReleased is called by Handle.Release/Invalidate. It admits the
// next queued caller if one is waiting, or otherwise returns the session
// to StateReady (or, if invalidated, StateLoggedOut so the next caller logs
// in again) once the last active handle is gone.
func (s *HttpSession) onHandleReleased(h *Handle, invalidated bool) {
	s.mu.Lock()

	if s.activeCount > 0 {
		s.activeCount--
	}

	if invalidated {
		s.lastErr = nil
	}

	if next := s.queue.popFront(); next != nil {
		// Transfer the InUse slot directly to the admitted caller instead
		// of returning to Ready first, so a single-request-mode session
		// never has a window where a third caller could race in ahead of
		// the one that was already queued.
		s.activeCount++
		close(next.admit)
		s.mu.Unlock()
		return
	}

	if s.activeCount == 0 && s.state != StateShutDown {
		switch {
		case invalidated:
			s.transitionLocked(StateLoggedOut)
		case s.config.AlwaysRenew:
			ctx := context.Background()
			s.logoutLocked(ctx)
		default:
			s.transitionLocked(StateReady)
			s.scheduleHeartbeatLocked()
		}
	}

	s.mu.Unlock()
}

// ------------------------------------------------------------------------

// scheduleHeartbeatLocked arms the heartbeat timer if the session is
// configured for one. Must be called with s.mu held.
func (s *HttpSession) scheduleHeartbeatLocked() {
	if s.config.Heartbeat == nil || s.config.HeartbeatInterval <= 0 {
		return
	}

	s.heartbeatTimer = time.AfterFunc(s.config.HeartbeatInterval, s.runHeartbeat)
}

// cancelHeartbeatLocked disarms the heartbeat timer. Must be called with
// s.mu held.
func (s *HttpSession) cancelHeartbeatLocked() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
}

// runHeartbeat fires on its own timer goroutine; it borrows the session
// with the same InUse accounting as an ordinary request. It runs only when
// the session is Ready; in any other state the heartbeat is skipped, not
// queued.
func (s *HttpSession) runHeartbeat() {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}

	s.activeCount++
	s.transitionLocked(StateInUse)
	h := newHandle(s)
	s.mu.Unlock()

	if err := s.config.Heartbeat(context.Background(), h); err != nil {
		s.config.Logger.LogError(LOG_WARN_LEVEL, decorate("session.heartbeat", KindNetwork, "", 0, err, nil))
	}

	h.Release()
}

// ------------------------------------------------------------------------

// transitionLocked moves the state machine to next, notifying status
// subscribers. It must be called with s.mu held, and panics on an edge the
// state machine does not define — an illegal transition is a programming
// error in this package, not a condition callers can trigger.
func (s *HttpSession) transitionLocked(next State) {
	if !validTransitions[s.state][next] {
		panic(fmt.Sprintf("httpsession: illegal transition %s -> %s", s.state, next))
	}

	s.state = next
	s.status.notify(s.snapshotLocked())
}

func (s *HttpSession) snapshotLocked() SessionStatus {
	return SessionStatus{
		State:          s.state,
		LastError:      s.lastErr,
		LockedOutUntil: s.lockedOutUntil,
		InQueue:        s.queue.len() + s.activeCount,
		UpdatedAt:      time.Now(),
	}
}
