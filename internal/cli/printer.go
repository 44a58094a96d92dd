package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// printer writes human output. Colors are off when disabled in config, when
// NO_COLOR is set, or on a dumb terminal.
type printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func newPrinter(out, errOut io.Writer, colors bool) *printer {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		colors = false
	}
	if os.Getenv("TERM") == "dumb" {
		colors = false
	}
	return &printer{out: out, err: errOut, useColors: colors}
}

func (p *printer) Success(format string, args ...any) {
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
}

func (p *printer) Warning(format string, args ...any) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
}

func (p *printer) Error(format string, args ...any) {
	if p.useColors {
		color.New(color.FgRed).Fprintf(p.err, "✗ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[ERROR] "+format+"\n", args...)
}

func (p *printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) Header(title string) {
	if p.useColors {
		color.New(color.FgWhite, color.Bold).Fprintf(p.out, "%s\n", title)
		return
	}
	fmt.Fprintf(p.out, "%s\n", title)
}

// Badge colors an estado or task status.
func (p *printer) Badge(status string) string {
	if !p.useColors {
		return "[" + status + "]"
	}
	switch status {
	case "activo", "Completado", "completado":
		return color.GreenString(status)
	case "inactivo":
		return color.RedString(status)
	case "pendiente", "En curso", "Planificado":
		return color.YellowString(status)
	default:
		return color.WhiteString(status)
	}
}
