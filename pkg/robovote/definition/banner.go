package definition

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

// asFile best-efforts a *os.File out of w, falling back to os.Stdout when
// w isn't one (colorable needs a file descriptor to detect a console).
func asFile(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return os.Stdout
}

// PrintBanner writes a colorized startup line for the CLI. Not a
// teacher analogue — go-mcast has no CLI banner — wired because
// fatih/color and mattn/go-colorable are otherwise-unused indirect
// dependencies in the teacher's go.mod.
func PrintBanner(w io.Writer, peerID int, host string, port int) {
	out := colorable.NewColorable(asFile(w))
	bold := color.New(color.FgCyan, color.Bold)
	bold.Fprintf(out, "robot %d", peerID)
	fmt.Fprintf(out, " listening on %s:%d\n", host, port)
}

// PrintShutdown writes the colorized shutdown line.
func PrintShutdown(w io.Writer, peerID int, exitCode int) {
	out := colorable.NewColorable(asFile(w))
	c := color.New(color.FgGreen)
	if exitCode != 0 {
		c = color.New(color.FgRed, color.Bold)
	}
	c.Fprintf(out, "robot %d", peerID)
	fmt.Fprintf(out, " shut down (exit %d)\n", exitCode)
}
