package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"redwhite/dashboard-bff/internal/dashboard"
	"redwhite/dashboard-bff/internal/gate"
)

func (m *Model) handleHomeKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if m.activation == nil || m.activation.State() != gate.Authenticated {
		if key == "q" || key == "esc" {
			return m.quit()
		}
		return nil
	}

	if m.search.Focused() {
		switch key {
		case "esc", "enter":
			m.search.Blur()
			return nil
		}
		before := m.search.Value()
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		if m.search.Value() == before {
			return cmd
		}
		m.searchSeq++
		seq := m.searchSeq
		return tea.Batch(cmd, m.after(searchDebounce, func(_ time.Time) tea.Msg {
			return searchMsg{seq: seq}
		}))
	}

	switch key {
	case "q", "esc":
		return m.quit()
	case "/":
		return m.search.Focus()
	case "s":
		m.timerAction("start", m.timer.Start)
	case "p":
		m.timerAction("pause", m.timer.Pause)
	case "x":
		m.timerAction("stop", m.timer.Stop)
	case "n", "right":
		if m.hasOverview && m.page < m.overview.Tasks.Pages {
			m.page++
			return m.fetchOverview()
		}
	case "b", "left":
		if m.page > 1 {
			m.page--
			return m.fetchOverview()
		}
	case "r":
		return m.fetchOverview()
	case "L":
		return m.logout()
	}
	return nil
}

func (m *Model) timerAction(name string, fn func(context.Context) error) {
	if m.timer == nil {
		return
	}
	if err := fn(m.ctx); err != nil {
		m.logger.Warn("timer action failed", "action", name, "error", err)
		m.status = "Temporizador: " + err.Error()
		return
	}
	m.status = ""
	m.refreshClock()
}

func (m *Model) logout() tea.Cmd {
	if m.activation != nil {
		m.activation.Deactivate()
	}
	m.status = "Cerrando sesión..."
	ctx := m.ctx
	backend := m.backend
	return func() tea.Msg {
		return logoutDoneMsg{err: backend.Logout(ctx)}
	}
}

func (m *Model) fetchOverview() tea.Cmd {
	q := dashboard.Query{
		Q:       strings.TrimSpace(m.search.Value()),
		Page:    m.page,
		PerPage: dashboard.DefaultPerPage,
	}
	seq := m.searchSeq
	ctx := m.ctx
	backend := m.backend
	return func() tea.Msg {
		ov, err := backend.Dashboard(ctx, q)
		return overviewMsg{seq: seq, overview: ov, err: err}
	}
}

func (m *Model) homeView() string {
	var sections []string

	header := titleStyle.Render("Inicio") + "  " + m.prof.DisplayName()
	if aff := m.prof.Affiliation(); aff != "" {
		header += subtleStyle.Render(" · " + aff)
	}
	sections = append(sections, header)

	running := ""
	if m.timer != nil {
		if st, err := m.timer.State(m.ctx); err == nil && st.Running() {
			running = okStyle.Render(" ●")
		}
	}
	sections = append(sections, panelStyle.Render(
		"Temporizador  "+clockStyle.Render(m.clock)+running+"\n"+
			subtleStyle.Render("s iniciar · p pausar · x detener"),
	))

	if m.hasOverview {
		sections = append(sections, m.kpiRow(), m.taskPanel(), m.teamPanel())
	} else {
		sections = append(sections, subtleStyle.Render("Cargando tablero…"))
	}

	if m.status != "" {
		sections = append(sections, errorStyle.Render(m.status))
	}
	sections = append(sections, subtleStyle.Render("/ buscar · n/b página · r recargar · L cerrar sesión · q salir"))
	return strings.Join(sections, "\n")
}

func (m *Model) kpiRow() string {
	cards := make([]string, 0, len(m.overview.KPIs))
	for _, k := range m.overview.KPIs {
		style := panelStyle
		if k.Primary {
			style = primaryPanelStyle
		}
		change := changeUpStyle.Render("▲ " + k.Change.Label)
		if k.Change.Type == "decrease" {
			change = changeDownStyle.Render("▼ " + k.Change.Label)
		}
		cards = append(cards, style.Render(k.Title+"\n"+lipgloss.NewStyle().Bold(true).Render(k.Value)+"\n"+change))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m *Model) taskPanel() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("POCs · progreso %d%%", m.overview.Progress)))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n")
	tasks := m.overview.Tasks
	if len(tasks.Items) == 0 {
		b.WriteString(subtleStyle.Render("Sin resultados"))
	}
	for _, t := range tasks.Items {
		b.WriteString(fmt.Sprintf("%-32s %-14s %s\n", t.Title, t.Date, statusStyle(t.Status).Render(t.Status)))
	}
	if tasks.Pages > 1 {
		b.WriteString(subtleStyle.Render(fmt.Sprintf("página %d de %d · %d POCs", tasks.Page, tasks.Pages, tasks.Total)))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) teamPanel() string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render("Equipo")}
	for _, mem := range m.overview.Team {
		line := fmt.Sprintf("[%s] %s · %s", mem.Initials, mem.Name, mem.Task)
		if mem.Progress != "" {
			line += subtleStyle.Render(" (" + mem.Progress + ")")
		}
		lines = append(lines, line)
	}
	for _, r := range m.overview.Reminders {
		lines = append(lines, subtleStyle.Render("Recordatorio: "+r.Title+" "+r.Time))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}
