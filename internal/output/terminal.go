package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorDisabled decides whether output written to w should be plain.
// Colour is off when requested, when NO_COLOR is set, or when w is not a
// terminal.
func ColorDisabled(noColor bool, w io.Writer) bool {
	return noColor || color.NoColor || !IsTerminal(w)
}
