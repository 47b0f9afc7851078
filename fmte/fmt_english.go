// Package fmte prints the scanner's user-facing progress narration with
// English-locale number formatting, so large entry counts read as
// "1,234,567". Structured debug detail lives in logx, not here.
package fmte

import (
	"os"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var p *message.Printer

var mx sync.Mutex // Shared mutex across stdout and stderr to ensure ordering across

var normalPrint = true

func init() {
	p = message.NewPrinter(language.English)
}

// Off function turns off Printf within fmte package; PrintfErr still prints
func Off() {
	normalPrint = false
}

// Printf is goroutine-safe fmt.Printf for English
func Printf(format string, a ...any) {
	if !normalPrint {
		return
	}
	mx.Lock()
	_, _ = p.Printf(format, a...)
	mx.Unlock()
}

// PrintfErr is goroutine-safe fmt.Printf to StdErr for English
func PrintfErr(format string, a ...any) {
	mx.Lock()
	_, _ = p.Fprintf(os.Stderr, format, a...)
	mx.Unlock()
}
