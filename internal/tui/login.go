package tui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"redwhite/dashboard-bff/internal/apiclient"
)

func (m *Model) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return m.quit()
	case "tab", "shift+tab", "up", "down":
		return m.focusField((m.focus + 1) % 2)
	case "enter":
		if m.focus == 0 {
			return m.focusField(1)
		}
		return m.submitLogin()
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	m.focus = i
	if i == 0 {
		m.password.Blur()
		return m.email.Focus()
	}
	m.email.Blur()
	return m.password.Focus()
}

func (m *Model) submitLogin() tea.Cmd {
	if m.submitting {
		return nil
	}
	email := strings.TrimSpace(m.email.Value())
	password := m.password.Value()
	if email == "" || password == "" {
		m.loginMsg = "Ingresa usuario y contraseña"
		m.loginErr = true
		return nil
	}

	m.submitting = true
	m.loginMsg = "Validando credenciales..."
	m.loginErr = false
	ctx := m.ctx
	backend := m.backend
	return func() tea.Msg {
		res, err := backend.Login(ctx, email, password)
		return loginResultMsg{res: res, err: err}
	}
}

func (m *Model) handleLoginResult(msg loginResultMsg) tea.Cmd {
	m.submitting = false
	if msg.err != nil {
		m.loginErr = true
		var le *apiclient.LoginError
		switch {
		case errors.As(msg.err, &le) && le.Reason != "":
			m.loginMsg = le.Reason
		case errors.Is(msg.err, apiclient.ErrInvalidCredentials):
			m.loginMsg = "Error de autenticación"
		case errors.Is(msg.err, apiclient.ErrUnreachable):
			m.loginMsg = "Error de red: no se pudo contactar al servidor"
		default:
			m.loginMsg = msg.err.Error()
		}
		return nil
	}

	m.resetLoginForm()
	return m.navigate(RouteInicio)
}

func (m *Model) resetLoginForm() {
	m.email.SetValue("")
	m.password.SetValue("")
	m.loginMsg = ""
	m.loginErr = false
	m.submitting = false
}

func (m *Model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RIMAC · Tablero POC"))
	b.WriteString("\n\n")
	b.WriteString(m.email.View())
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")
	switch {
	case m.loginMsg == "":
		b.WriteString(" ")
	case m.loginErr:
		b.WriteString(errorStyle.Render(m.loginMsg))
	default:
		b.WriteString(subtleStyle.Render(m.loginMsg))
	}
	b.WriteString("\n\n")
	b.WriteString(subtleStyle.Render("tab cambia de campo · enter ingresa · esc sale"))
	return panelStyle.Render(b.String())
}
