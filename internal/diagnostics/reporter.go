// Package diagnostics renders type-check Diagnostics (errors and
// exhaustiveness warnings) the way kanso-lang's internal/errors/reporter.go
// renders compiler errors: a colored `severity: message` header plus a
// `-->file:line:col` gutter and, where available, a did-you-mean note.
package diagnostics

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"vela/internal/errors"
)

// Reporter formats diagnostics against one source file.
type Reporter struct {
	Filename string
	Lines    []string
	noColor  bool
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{
		Filename: filename,
		Lines:    strings.Split(source, "\n"),
		noColor:  !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
}

// Format renders one diagnostic.
func (r *Reporter) Format(d *errors.Diagnostic) string {
	var sb strings.Builder

	levelColor := r.levelColor(d.Severity)
	dim := r.colorFn(color.Faint)

	sb.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Severity)), d.Message))

	if d.Line > 0 {
		sb.WriteString(fmt.Sprintf("  %s %s:%d:%d\n", dim("-->"), r.Filename, d.Line, d.Column))
		if d.Line-1 < len(r.Lines) && d.Line-1 >= 0 {
			sb.WriteString(fmt.Sprintf("  %s %s\n", dim("|"), r.Lines[d.Line-1]))
		}
	}

	if d.Suggestion != "" {
		help := r.colorFn(color.FgGreen)
		sb.WriteString(fmt.Sprintf("  %s: did you mean `%s`?\n", help("help"), d.Suggestion))
	}

	return sb.String()
}

// FormatAll renders a batch of diagnostics, errors before warnings.
func (r *Reporter) FormatAll(diags []*errors.Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		if d.Severity == errors.SeverityError {
			sb.WriteString(r.Format(d))
		}
	}
	for _, d := range diags {
		if d.Severity == errors.SeverityWarning {
			sb.WriteString(r.Format(d))
		}
	}
	return sb.String()
}

func (r *Reporter) levelColor(sev errors.Severity) func(...interface{}) string {
	switch sev {
	case errors.SeverityError:
		return r.colorFn(color.FgRed, color.Bold)
	case errors.SeverityWarning:
		return r.colorFn(color.FgYellow, color.Bold)
	default:
		return r.colorFn(color.Bold)
	}
}

func (r *Reporter) colorFn(attrs ...color.Attribute) func(...interface{}) string {
	c := color.New(attrs...)
	if r.noColor {
		c.DisableColor()
	}
	return c.SprintFunc()
}
