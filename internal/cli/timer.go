package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"redwhite/dashboard-bff/internal/tui"
)

func newTimerCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Control the persisted stopwatch",
		Long: `The stopwatch state lives in the dashctl state, so it keeps counting
while no dashctl process is running.

Examples:
  dashctl timer start
  dashctl timer watch     # Redraw every second until Ctrl+C`,
	}

	cmd.AddCommand(
		timerAction(e, "start", "Start or resume the stopwatch", func(c *cobra.Command) error {
			return e.stopwatch.Start(c.Context())
		}),
		timerAction(e, "pause", "Pause and keep the elapsed time", func(c *cobra.Command) error {
			return e.stopwatch.Pause(c.Context())
		}),
		timerAction(e, "stop", "Stop and reset to zero", func(c *cobra.Command) error {
			return e.stopwatch.Stop(c.Context())
		}),
		timerAction(e, "show", "Print the elapsed time", nil),
		&cobra.Command{
			Use:   "watch",
			Short: "Print the elapsed time every second",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return e.stopwatch.Watch(c.Context(), time.Second, func(s string) {
					fmt.Fprintf(c.OutOrStdout(), "\r%s", s)
				})
			},
		},
	)
	return cmd
}

// timerAction runs fn and prints the resulting display value.
func timerAction(e *env, use, short string, fn func(*cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if fn != nil {
				if err := fn(c); err != nil {
					return err
				}
			}
			st, err := e.stopwatch.State(c.Context())
			if err != nil {
				return err
			}
			display, err := e.stopwatch.Display(c.Context())
			if err != nil {
				return err
			}
			state := "detenido"
			if st.Running() {
				state = "corriendo"
			}
			e.print.Print("%s (%s)", display, state)
			return nil
		},
	}
}

func newUICommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			start := tui.RouteLogin
			if e.client.HasSession() {
				start = tui.RouteInicio
			}
			model := tui.New(tui.Options{
				Backend:    e.client,
				Timer:      e.stopwatch,
				Profiles:   e.client.Profiles(),
				Logger:     e.logger,
				StartRoute: start,
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(c.Context()))
			_, err := p.Run()
			return err
		},
	}
}
