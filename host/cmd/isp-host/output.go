package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"ispboot/host/isp"
)

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed, color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
	labelColor = color.New(color.Bold)
)

// output prints status lines and implements isp.Logger
type output struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	inBar   bool
}

func newOutput(w io.Writer, verbose, noColor bool) *output {
	if noColor {
		color.NoColor = true
	}
	return &output{w: w, verbose: verbose}
}

func (o *output) Debug(msg string, keysAndValues ...interface{}) {
	if o.verbose {
		o.line(debugColor, msg, keysAndValues)
	}
}

func (o *output) Info(msg string, keysAndValues ...interface{}) {
	if o.verbose {
		o.line(infoColor, msg, keysAndValues)
	}
}

func (o *output) Error(msg string, keysAndValues ...interface{}) {
	o.line(errorColor, msg, keysAndValues)
}

func (o *output) line(c *color.Color, msg string, kv []interface{}) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.endBar()
	c.Fprintln(o.w, b.String())
}

func (o *output) status(format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endBar()
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o *output) ok(format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endBar()
	okColor.Fprintf(o.w, format+"\n", args...)
}

// field prints an aligned "label value" line
func (o *output) field(label string, format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	labelColor.Fprintf(o.w, "  %-16s", label)
	fmt.Fprintf(o.w, format+"\n", args...)
}

// progress draws a single-line bar that the next status line replaces
func (o *output) progress(p isp.Progress) {
	const width = 30

	o.mu.Lock()
	defer o.mu.Unlock()

	filled := int(p.Percentage / 100 * width)
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	fmt.Fprintf(o.w, "\r%-12s [%s] %5.1f%%", p.Phase, bar, p.Percentage)
	o.inBar = true
	if p.Phase == isp.PhaseComplete {
		o.endBar()
	}
}

func (o *output) endBar() {
	if o.inBar {
		fmt.Fprintln(o.w)
		o.inBar = false
	}
}
