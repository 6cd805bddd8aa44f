package cli

import (
	"io"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	pathColor    = color.New(color.FgYellow)
)

func header(w io.Writer, format string, a ...any) {
	headerColor.Fprintf(w, format+"\n", a...)
}

func info(w io.Writer, format string, a ...any) {
	infoColor.Fprintf(w, format+"\n", a...)
}

func warning(w io.Writer, format string, a ...any) {
	warningColor.Fprintf(w, format+"\n", a...)
}

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "Error:")
	io.WriteString(w, " "+err.Error()+"\n")
}

func printPaths(w io.Writer, paths []string) {
	for _, p := range paths {
		pathColor.Fprintf(w, "  - %s\n", p)
	}
}
