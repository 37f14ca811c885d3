package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/piazza/internal/report"
)

// Response is the envelope of json and yaml command output.
type Response struct {
	Status string     `json:"status" yaml:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty" yaml:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty" yaml:"error,omitempty"`
}

// ErrorBody describes a failed command. Code is an engine error code such
// as RECIPE_REJECTED, or one of the E_* codes.
type ErrorBody struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Details any    `json:"details,omitempty" yaml:"details,omitempty"`
}

// Printer writes command results to Out in the --format the user picked.
// Progress and debug lines go to Diag so json and yaml stay parseable.
type Printer struct {
	Format  string
	Out     io.Writer
	Diag    io.Writer
	Verbose bool
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *Printer {
	return &Printer{
		Format:  opts.Format,
		Out:     cmd.OutOrStdout(),
		Diag:    cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}
}

// Structured reports whether output is json or yaml.
func (p *Printer) Structured() bool { return p.Format != "text" }

// Result prints text, or data inside an ok Response.
func (p *Printer) Result(data any, text string) error {
	if p.Structured() {
		return report.Encode(p.Out, p.Format, Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.Out, text)
	return err
}

// Fail prints a failure. In text, details are shown only when verbose.
func (p *Printer) Fail(code, message string, data, details any) error {
	if p.Structured() {
		return report.Encode(p.Out, p.Format, Response{
			Status: "error",
			Data:   data,
			Error:  &ErrorBody{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(p.Out, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if p.Verbose && details != nil {
		_, err := fmt.Fprintf(p.Out, "Details: %+v\n", details)
		return err
	}
	return nil
}

// Debugf writes a line to Diag when verbose.
func (p *Printer) Debugf(format string, args ...any) {
	if p.Verbose {
		fmt.Fprintf(p.Diag, format+"\n", args...)
	}
}

// logWriter is where a command's slog output goes: Diag when verbose,
// nowhere otherwise.
func (p *Printer) logWriter() io.Writer {
	if p.Verbose {
		return p.Diag
	}
	return io.Discard
}
