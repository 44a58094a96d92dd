package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"redwhite/dashboard-bff/internal/apiclient"
)

func newLoginCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session cookie",
		Long: `Sign in against the backend. The password is read from --password,
DASHCTL_PASSWORD, or prompted for without echo.

Examples:
  dashctl login --email ana@example.com
  DASHCTL_PASSWORD=... dashctl login --email ana@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("DASHCTL_PASSWORD")
			}
			if password == "" {
				var err error
				if password, err = readPassword(cmd); err != nil {
					return err
				}
			}

			res, err := e.client.Login(cmd.Context(), email, password)
			if err != nil {
				var le *apiclient.LoginError
				if errors.As(err, &le) && le.Reason != "" {
					return fmt.Errorf("login rejected: %s", le.Reason)
				}
				return fmt.Errorf("login failed: %w", err)
			}
			e.print.Success("Sesión iniciada como %s", res.Profile.DisplayName())
			if aff := res.Profile.Affiliation(); aff != "" {
				e.print.Print("  %s", aff)
			}
			if res.ExpiresAt != "" {
				e.print.Print("  expira: %s", res.ExpiresAt)
			}
			return nil
		},
	}
	cmd.Flags().String("email", "", "email or username")
	cmd.Flags().String("password", "", "password (prefer the prompt)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Contraseña: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear local credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.client.Logout(cmd.Context()); err != nil {
				return err
			}
			e.print.Success("Sesión cerrada")
			return nil
		},
	}
}

func newSessionCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Ask the backend whether the stored session is live",
		Long: `Performs one server-side session check. Exits non-zero when the session
is not valid, including when the backend cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := e.client.CheckSession(cmd.Context())
			if err != nil {
				e.logger.Debug("session check failed", "error", err)
			}
			if err != nil || !ok {
				e.print.Warning("Sin sesión válida")
				return errNoSession
			}
			e.print.Success("Sesión válida")
			if p, ok := e.client.Profiles().Load(cmd.Context()); ok {
				e.print.Print("  %s", p.DisplayName())
			}
			return nil
		},
	}
}

var errNoSession = errors.New("not authenticated")

func newRefreshCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Extend the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			expires, err := e.client.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
			e.print.Success("Sesión renovada hasta %s", expires)
			return nil
		},
	}
}
