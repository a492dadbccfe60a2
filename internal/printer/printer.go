// Package printer writes styled, human-facing status lines for commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/styles"
)

type ctxKey struct{}

// Printer writes status lines to a writer.
type Printer struct {
	w io.Writer
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// WithPrinter stores p in ctx.
func WithPrinter(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the Printer stored in ctx, or one writing to stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) line(style lipgloss.Style, icon, format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", style.Render(icon), fmt.Sprintf(format, args...))
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.Success, styles.IconSuccess, format, args...)
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.Info, styles.IconInfo, format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.Warning, styles.IconWarning, format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.Error, styles.IconError, format, args...)
}

// Printf writes an unstyled line.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}
