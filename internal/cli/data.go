package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"redwhite/dashboard-bff/internal/dashboard"
	"redwhite/dashboard-bff/internal/experiments"
)

func newPublicosCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publicos",
		Short: "List audiences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := e.client.Publicos(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, items)
			}
			e.print.Header("Públicos")
			for _, p := range items {
				e.print.Print("%-4s %-20s %s", p.ID, p.Nombre, e.print.Badge(p.Estado))
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func newExperimentsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiments",
		Aliases: []string{"experimentos"},
		Short:   "List or create experiments",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := e.client.Experiments(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				e.print.Print("Sin experimentos")
				return nil
			}
			e.print.Header("Experimentos")
			for _, x := range items {
				e.print.Print("%-36s %-30s %s", x.ID, x.Nombre, e.print.Badge(x.Estado))
			}
			return nil
		},
	}
	list.Flags().Bool("json", false, "output as JSON")

	create := &cobra.Command{
		Use:   "create NOMBRE",
		Short: "Create an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			estado, _ := cmd.Flags().GetString("estado")
			created, err := e.client.CreateExperiment(cmd.Context(), experiments.Input{Nombre: args[0], Estado: estado})
			if err != nil {
				return fmt.Errorf("create experiment: %w", err)
			}
			e.print.Success("Creado %s (%s)", created.Nombre, created.ID)
			return nil
		},
	}
	create.Flags().String("estado", "", "activo, pendiente, inactivo or completado (default pendiente)")

	cmd.AddCommand(list, create)
	return cmd
}

func newDashboardCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show KPIs and the POC list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := dashboard.Query{}
			q.Q, _ = cmd.Flags().GetString("q")
			q.Status, _ = cmd.Flags().GetString("status")
			q.Page, _ = cmd.Flags().GetInt("page")
			q.PerPage, _ = cmd.Flags().GetInt("per-page")

			ov, err := e.client.Dashboard(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, ov)
			}

			e.print.Header("KPIs")
			for _, k := range ov.KPIs {
				e.print.Print("%-20s %5s  %s", k.Title, k.Value, k.Change.Label)
			}
			e.print.Header(fmt.Sprintf("POCs (progreso %d%%)", ov.Progress))
			for _, t := range ov.Tasks.Items {
				e.print.Print("%-32s %-14s %s", t.Title, t.Date, e.print.Badge(t.Status))
			}
			e.print.Print("página %d de %d · %d POCs", ov.Tasks.Page, ov.Tasks.Pages, ov.Tasks.Total)
			return nil
		},
	}
	cmd.Flags().String("q", "", "search POC titles")
	cmd.Flags().String("status", "", "filter by status")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("per-page", dashboard.DefaultPerPage, "items per page")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
