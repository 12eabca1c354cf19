package main

import (
	"io"
	"os"
	"strings"

	"github.com/dimiro1/banner"
	"github.com/mattn/go-colorable"
)

const bannerText = `
{{ .Title "PiLobster" "" 0 }}
{{ .AnsiColor.BrightRed }}local model, scheduled answers{{ .AnsiReset }}
{{ .AnsiColor.White }}{{ .GoVersion }} {{ .GOOS }}/{{ .GOARCH }}, {{ .NumCPU }} CPUs{{ .AnsiReset }}

`

// printBanner writes the startup banner. Terminals get ANSI colors
// (translated on Windows consoles), anything else gets plain text.
func printBanner(w io.Writer) {
	out, color := bannerWriter(w)
	banner.Init(out, true, color, strings.NewReader(bannerText))
}

func bannerWriter(w io.Writer) (io.Writer, bool) {
	if f, ok := w.(*os.File); ok {
		return colorable.NewColorable(f), true
	}
	return colorable.NewNonColorable(w), false
}
