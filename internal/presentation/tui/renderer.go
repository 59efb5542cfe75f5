package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// NewRenderer returns a markdown renderer wrapped to width columns.
// When glamour cannot be initialised the text is returned unchanged.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return r.Render
}

// Printer writes chat messages to a terminal.
type Printer struct {
	out    *termenv.Output
	render func(string) (string, error)
}

// NewPrinter creates a printer for w. A nil render prints bot text raw.
func NewPrinter(w io.Writer, render func(string) (string, error)) *Printer {
	return &Printer{out: termenv.NewOutput(w), render: render}
}

// Event prints one display event. Bot text goes through the markdown renderer;
// rating questions list their options with numbers.
func (p *Printer) Event(ev domain.DisplayEvent) {
	profile := p.out.ColorProfile()

	if ev.Sender == domain.SenderUser {
		fmt.Fprintln(p.out, p.out.String("> "+ev.Content).Foreground(profile.Color("#9ca3af")).Italic())
		return
	}

	text := ev.Content
	if p.render != nil {
		if rendered, err := p.render(text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		}
	}
	fmt.Fprintln(p.out, text)

	if ev.AnswerKind.IsRating() {
		for i, o := range ev.Options {
			num := p.out.String(fmt.Sprintf("  %d.", i+1)).Foreground(profile.Color("#38bdf8")).Bold()
			fmt.Fprintf(p.out, "%s %s\n", num, o)
		}
		if ev.AnswerKind == domain.AnswerRatingMulti {
			fmt.Fprintln(p.out, p.out.String("  (pick one or more, separated by commas)").Faint())
		}
	}
}

// Notice prints a dim status line.
func (p *Printer) Notice(format string, args ...any) {
	fmt.Fprintln(p.out, p.out.String(fmt.Sprintf(format, args...)).Faint())
}

// Failure prints an error line.
func (p *Printer) Failure(format string, args ...any) {
	profile := p.out.ColorProfile()
	fmt.Fprintln(p.out, p.out.String(fmt.Sprintf(format, args...)).Foreground(profile.Color("#f87171")))
}
