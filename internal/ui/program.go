package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes headers, result boxes and plain lines for one-shot
// commands such as scan and config init.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter returns a Printer sized to the terminal. A nil w means stdout.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Linef writes one formatted line.
func (p *Printer) Linef(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

// Blank writes an empty line.
func (p *Printer) Blank() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader writes the command banner followed by a blank line.
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	_, _ = fmt.Fprintln(p.out, NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Blank()
}

// PrintSuccess writes a success box with details.
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.result(NewSuccessResult(title, details))
}

// PrintWarning writes a warning box with details.
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.result(NewWarningResult(title, details))
}

// PrintError writes a failure box with err and the troubleshooting hints.
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.result(NewFailureResult(title, err, troubleshooting))
}

func (p *Printer) result(r *Result) {
	_, _ = fmt.Fprintln(p.out, r.SetWidth(p.width).Render())
}
