package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redwhite/dashboard-bff/internal/apiclient"
	"redwhite/dashboard-bff/internal/dashboard"
	"redwhite/dashboard-bff/internal/gate"
	"redwhite/dashboard-bff/internal/kv"
	"redwhite/dashboard-bff/internal/profile"
	"redwhite/dashboard-bff/internal/timer"
)

type fakeBackend struct {
	mu       sync.Mutex
	session  bool
	checkErr error
	loginErr error
	checks   int
	logouts  int
	queries  []dashboard.Query
	block    chan struct{}
}

func (f *fakeBackend) CheckSession(ctx context.Context) (bool, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.session, f.checkErr
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (apiclient.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return apiclient.LoginResult{}, f.loginErr
	}
	f.session = true
	return apiclient.LoginResult{Profile: profile.Profile{Email: email}}, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.session = false
	return nil
}

func (f *fakeBackend) Dashboard(_ context.Context, q dashboard.Query) (dashboard.Overview, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return dashboard.Build(q), nil
}

func (f *fakeBackend) setLoginErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginErr = err
}

func (f *fakeBackend) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeBackend) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func newTestModel(t *testing.T, backend *fakeBackend, start string) (*Model, *timer.Timer) {
	t.Helper()
	store := kv.NewMemory()
	tm := timer.New(store)
	m := New(Options{
		Backend:    backend,
		Timer:      tm,
		Profiles:   profile.NewCache(store, nil),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		StartRoute: start,
	})
	// Delays are reported instead of slept through, and cursors do not
	// blink, so every command a test runs returns promptly.
	m.after = func(d time.Duration, _ func(time.Time) tea.Msg) tea.Cmd {
		return func() tea.Msg { return delayedMsg{d: d} }
	}
	for _, in := range []*textinput.Model{&m.email, &m.password, &m.search} {
		in.Cursor.SetMode(cursor.CursorStatic)
	}
	t.Cleanup(m.cancel)
	return m, tm
}

// delayedMsg stands in for a clock tick or debounce timer. drain drops it;
// tests deliver the real message themselves when they need it.
type delayedMsg struct{ d time.Duration }

// drain runs cmd and every follow-up command to completion, feeding the
// results back into the model. Delayed messages are dropped.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("command loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := runWithin(t, next, 2*time.Second).(type) {
		case nil, delayedMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, follow := m.Update(msg)
			queue = append(queue, follow)
		}
	}
}

func runWithin(t *testing.T, cmd tea.Cmd, d time.Duration) tea.Msg {
	t.Helper()
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(d):
		t.Fatalf("command did not finish within %v", d)
		return nil
	}
}

func press(t *testing.T, m *Model, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := m.Update(msg)
		drain(t, m, cmd)
	}
}

func TestProtectedRouteDeniedRedirectsToLogin(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{})}
	m, _ := newTestModel(t, backend, RouteInicio)

	cmd := m.navigate(RouteInicio)
	assert.Equal(t, gate.Placeholder, m.View(), "placeholder while the check is in flight")

	close(backend.block)
	drain(t, m, cmd)
	assert.Equal(t, RouteLogin, m.Route())
	assert.Equal(t, 1, backend.checkCount())
	assert.Contains(t, m.View(), "Inicia sesión")
}

func TestCheckErrorIsDenied(t *testing.T) {
	backend := &fakeBackend{session: true, checkErr: errors.New("boom")}
	m, _ := newTestModel(t, backend, "")

	drain(t, m, m.navigate(RouteInicio))
	assert.Equal(t, RouteLogin, m.Route())
}

func TestLoginThenProtectedView(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteLogin))

	press(t, m, "ana@example.com", "tab", "pw", "enter")

	require.Equal(t, RouteInicio, m.Route())
	assert.Equal(t, gate.Authenticated, m.activation.State())
	assert.Equal(t, 1, backend.checkCount(), "entering inicio issues exactly one check")
	view := m.View()
	assert.Contains(t, view, "Inicio")
	assert.Contains(t, view, "POCs totales")
}

func TestLoginErrorStaysOnForm(t *testing.T) {
	backend := &fakeBackend{loginErr: &apiclient.LoginError{Status: 401, Reason: "usuario o contraseña incorrectos"}}
	m, _ := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteLogin))

	press(t, m, "ana@example.com", "tab", "bad", "enter")
	assert.Equal(t, RouteLogin, m.Route())
	assert.Contains(t, m.View(), "usuario o contraseña incorrectos")

	backend.setLoginErr(apiclient.ErrUnreachable)
	press(t, m, "enter")
	assert.Contains(t, m.View(), "Error de red")
}

func TestLoginRequiresBothFields(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteLogin))

	press(t, m, "tab", "enter")
	assert.Equal(t, RouteLogin, m.Route())
	assert.Contains(t, m.View(), "Ingresa usuario y contraseña")
}

func TestReactivationIssuesFreshCheck(t *testing.T) {
	backend := &fakeBackend{session: true}
	m, _ := newTestModel(t, backend, "")

	drain(t, m, m.navigate(RouteInicio))
	drain(t, m, m.navigate(RouteInicio))
	assert.Equal(t, 2, backend.checkCount())
}

func TestTimerKeys(t *testing.T) {
	backend := &fakeBackend{session: true}
	m, tm := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteInicio))
	ctx := context.Background()

	press(t, m, "s")
	st, err := tm.State(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running())

	press(t, m, "p")
	st, err = tm.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.Running())

	press(t, m, "s", "x")
	st, err = tm.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.Running())
	assert.Equal(t, "00:00:00", m.clock)
}

func TestSearchIsDebounced(t *testing.T) {
	backend := &fakeBackend{session: true}
	m, _ := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteInicio))
	initial := backend.queryCount()
	require.Equal(t, 1, initial, "entering inicio loads the overview once")

	press(t, m, "/", "O", "n", "b")
	assert.Equal(t, initial, backend.queryCount(), "no request before the debounce fires")

	// Only the latest keystroke's timer triggers a request.
	_, cmd := m.Update(searchMsg{seq: m.searchSeq - 1})
	assert.Nil(t, cmd)
	_, cmd = m.Update(searchMsg{seq: m.searchSeq})
	drain(t, m, cmd)

	require.Equal(t, initial+1, backend.queryCount())
	assert.Equal(t, "Onb", backend.queries[initial].Q)
	assert.Contains(t, m.View(), "Flujo de Onboarding")
	assert.NotContains(t, m.View(), "Construir Tablero")
}

func TestLogoutReturnsToLogin(t *testing.T) {
	backend := &fakeBackend{session: true}
	m, _ := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteInicio))

	press(t, m, "L")
	assert.Equal(t, RouteLogin, m.Route())
	assert.Equal(t, 1, backend.logouts)
	assert.True(t, strings.Contains(m.View(), "Correo"))
}

func TestSearchSchedulesDebounce(t *testing.T) {
	backend := &fakeBackend{session: true}
	m, _ := newTestModel(t, backend, "")
	drain(t, m, m.navigate(RouteInicio))

	var delays []time.Duration
	m.after = func(d time.Duration, _ func(time.Time) tea.Msg) tea.Cmd {
		delays = append(delays, d)
		return func() tea.Msg { return delayedMsg{d: d} }
	}
	press(t, m, "/", "x")
	assert.Equal(t, []time.Duration{searchDebounce}, delays)
	assert.Equal(t, 1, backend.queryCount())
}
