package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Inquiry banner, coloured for the terminal's profile.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  ___                   _           ", "#34d399"},
		{" |_ _|_ __   __ _ _   _(_)_ __ _   _", "#2dd4bf"},
		{"  | || '_ \\ / _` | | | | | '__| | | |", "#22d3ee"},
		{"  | || | | | (_| | |_| | | |  | |_| |", "#38bdf8"},
		{" |___|_| |_|\\__, |\\__,_|_|_|   \\__, |", "#60a5fa"},
		{"               |_|             |___/ ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
