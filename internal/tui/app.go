// Package tui is the dashctl terminal dashboard. It has two routes: the
// login form and the protected inicio view, which is mounted behind a
// session gate activation every time it is entered.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"redwhite/dashboard-bff/internal/apiclient"
	"redwhite/dashboard-bff/internal/dashboard"
	"redwhite/dashboard-bff/internal/gate"
	"redwhite/dashboard-bff/internal/profile"
	"redwhite/dashboard-bff/internal/timer"
)

const (
	RouteLogin  = "/"
	RouteInicio = "/inicio"

	searchDebounce = 300 * time.Millisecond
	clockInterval  = time.Second
)

// Backend is the slice of the API client the dashboard needs.
type Backend interface {
	CheckSession(ctx context.Context) (bool, error)
	Login(ctx context.Context, email, password string) (apiclient.LoginResult, error)
	Logout(ctx context.Context) error
	Dashboard(ctx context.Context, q dashboard.Query) (dashboard.Overview, error)
}

type Options struct {
	Backend  Backend
	Timer    *timer.Timer
	Profiles *profile.Cache
	Logger   *slog.Logger
	// StartRoute is RouteLogin unless set.
	StartRoute string
}

// chanNavigator turns the gate's redirect into a message the update loop
// picks up once the activation resolves.
type chanNavigator chan string

func (n chanNavigator) Replace(path string) {
	select {
	case n <- path:
	default:
	}
}

type tickMsg time.Time

type gateResolvedMsg struct{ act *gate.Activation }

type loginResultMsg struct {
	res apiclient.LoginResult
	err error
}

type logoutDoneMsg struct{ err error }

// searchMsg fires after the debounce delay; only the latest seq is acted on.
type searchMsg struct{ seq int }

type overviewMsg struct {
	seq      int
	overview dashboard.Overview
	err      error
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	backend  Backend
	timer    *timer.Timer
	profiles *profile.Cache
	logger   *slog.Logger

	// after schedules delayed messages: the clock and the search debounce.
	after func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

	gate       *gate.Gate
	nav        chanNavigator
	activation *gate.Activation
	route      string
	startRoute string

	// login
	email      textinput.Model
	password   textinput.Model
	focus      int
	loginMsg   string
	loginErr   bool
	submitting bool

	// inicio
	prof        profile.Profile
	clock       string
	search      textinput.Model
	searchSeq   int
	page        int
	overview    dashboard.Overview
	hasOverview bool
	status      string

	width int
}

func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	nav := make(chanNavigator, 1)

	email := textinput.New()
	email.Placeholder = "usuario@empresa.com"
	email.Prompt = "Correo:     "
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "••••••••"
	password.Prompt = "Contraseña: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	search := textinput.New()
	search.Placeholder = "Buscar POC…"
	search.Prompt = "/ "

	start := opts.StartRoute
	if start == "" {
		start = RouteLogin
	}

	return &Model{
		ctx:        ctx,
		cancel:     cancel,
		backend:    opts.Backend,
		timer:      opts.Timer,
		profiles:   opts.Profiles,
		logger:     logger,
		after:      tea.Tick,
		gate:       gate.New(opts.Backend, nav, RouteLogin, logger),
		nav:        nav,
		startRoute: start,
		email:      email,
		password:   password,
		search:     search,
		page:       1,
		clock:      timer.Format(0),
	}
}

func (m *Model) Route() string {
	return m.route
}

func (m *Model) Init() tea.Cmd {
	m.refreshClock()
	return tea.Batch(m.tick(), m.navigate(m.startRoute))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.refreshClock()
		return m, m.tick()

	case gateResolvedMsg:
		return m, m.handleGateResolved(msg)

	case loginResultMsg:
		return m, m.handleLoginResult(msg)

	case logoutDoneMsg:
		if msg.err != nil {
			m.logger.Warn("logout cleanup failed", "error", msg.err)
		}
		m.resetLoginForm()
		return m, m.navigate(RouteLogin)

	case searchMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		m.page = 1
		return m, m.fetchOverview()

	case overviewMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		if msg.err != nil {
			m.status = "No se pudo cargar el tablero: " + msg.err.Error()
			return m, nil
		}
		m.overview = msg.overview
		m.hasOverview = true
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.route == RouteInicio {
			return m, m.handleHomeKey(msg)
		}
		return m, m.handleLoginKey(msg)
	}

	return m, m.updateInputs(msg)
}

// updateInputs forwards cursor blinks and other component messages to the
// focused input.
func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.route == RouteInicio:
		if m.search.Focused() {
			m.search, cmd = m.search.Update(msg)
		}
	case m.focus == 0:
		m.email, cmd = m.email.Update(msg)
	default:
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *Model) View() string {
	if m.route == RouteInicio {
		if m.activation == nil {
			return ""
		}
		return m.activation.View(m.homeView)
	}
	return m.loginView()
}

// navigate switches routes. Entering inicio always mounts a new gate
// activation; leaving it abandons the current one.
func (m *Model) navigate(path string) tea.Cmd {
	if m.activation != nil {
		m.activation.Deactivate()
		m.activation = nil
	}
	if path != RouteInicio {
		m.route = RouteLogin
		return m.focusField(0)
	}

	m.route = RouteInicio
	m.status = ""
	m.hasOverview = false
	if m.profiles != nil {
		m.prof, _ = m.profiles.Load(m.ctx)
	}
	// Drop a redirect left over from an abandoned activation.
	select {
	case <-m.nav:
	default:
	}
	act := m.gate.Activate(m.ctx)
	m.activation = act
	return func() tea.Msg {
		<-act.Done()
		return gateResolvedMsg{act: act}
	}
}

func (m *Model) handleGateResolved(msg gateResolvedMsg) tea.Cmd {
	if msg.act != m.activation {
		return nil
	}
	select {
	case path := <-m.nav:
		m.activation = nil
		m.loginMsg = "Inicia sesión para continuar"
		m.loginErr = true
		return m.navigate(path)
	default:
	}
	if msg.act.State() == gate.Authenticated {
		return m.fetchOverview()
	}
	return nil
}

func (m *Model) quit() tea.Cmd {
	if m.activation != nil {
		m.activation.Deactivate()
	}
	m.cancel()
	return tea.Quit
}

func (m *Model) refreshClock() {
	if m.timer == nil {
		return
	}
	s, err := m.timer.Display(m.ctx)
	if err != nil {
		m.logger.Warn("timer read failed", "error", err)
		return
	}
	m.clock = s
}

func (m *Model) tick() tea.Cmd {
	return m.after(clockInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
