// Package gate guards protected views behind a single server-side session
// check per activation. Whatever goes wrong during the check, the outcome is
// Denied and the user is sent back to the login route.
package gate

import (
	"context"
	"log/slog"
	"sync"
)

// Placeholder is rendered while the session check is in flight.
const Placeholder = "Validando sesión… / Validating session…"

type State int

const (
	Loading State = iota
	Authenticated
	Denied
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Checker asks the backend whether the current credentials hold a live
// session.
type Checker interface {
	CheckSession(ctx context.Context) (bool, error)
}

// Navigator performs a history-replacing redirect.
type Navigator interface {
	Replace(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Replace(path string) { f(path) }

// Decide collapses a check outcome into a gate state. Every error is a
// denial.
func Decide(ok bool, err error) State {
	if err != nil || !ok {
		return Denied
	}
	return Authenticated
}

type Gate struct {
	checker   Checker
	nav       Navigator
	loginPath string
	logger    *slog.Logger
}

func New(checker Checker, nav Navigator, loginPath string, logger *slog.Logger) *Gate {
	if loginPath == "" {
		loginPath = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{checker: checker, nav: nav, loginPath: loginPath, logger: logger}
}

// Activate starts one asynchronous session check. Each call issues a fresh
// check; nothing is cached between activations. Cancelling parent counts as
// Deactivate.
func (g *Gate) Activate(parent context.Context) *Activation {
	ctx, cancel := context.WithCancel(parent)
	a := &Activation{
		state:  Loading,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go g.run(ctx, a)
	return a
}

func (g *Gate) run(ctx context.Context, a *Activation) {
	defer close(a.done)
	defer a.cancel()

	ok, err := g.checker.CheckSession(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deactivated || ctx.Err() != nil {
		a.deactivated = true
		return
	}
	a.state = Decide(ok, err)
	if err != nil {
		g.logger.Warn("session check failed", "error", err)
	}
	if a.state == Denied {
		// Held under the lock so a concurrent Deactivate cannot slip in
		// between the decision and the redirect.
		g.nav.Replace(g.loginPath)
	}
}

// Activation is one mounted instance of the gate. Navigator implementations
// must not call back into it.
type Activation struct {
	mu          sync.Mutex
	state       State
	deactivated bool
	done        chan struct{}
	cancel      context.CancelFunc
}

func (a *Activation) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Done is closed once the check has finished or been abandoned.
func (a *Activation) Done() <-chan struct{} {
	return a.done
}

// Deactivate aborts the in-flight check. A result arriving afterwards is
// discarded: no state change and no redirect.
func (a *Activation) Deactivate() {
	a.mu.Lock()
	a.deactivated = true
	a.mu.Unlock()
	a.cancel()
}

// Wait blocks until the check resolves or ctx ends and returns the state
// at that point.
func (a *Activation) Wait(ctx context.Context) State {
	select {
	case <-a.done:
	case <-ctx.Done():
	}
	return a.State()
}

// View renders the placeholder while loading, the protected content once
// authenticated, and nothing when denied.
func (a *Activation) View(content func() string) string {
	switch a.State() {
	case Loading:
		return Placeholder
	case Authenticated:
		return content()
	default:
		return ""
	}
}
