package format

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	ErrorColor   = color.New(color.FgRed, color.Bold)
	WarningColor = color.New(color.FgYellow, color.Bold)
	SuccessColor = color.New(color.FgGreen, color.Bold)
	HeadingColor = color.New(color.FgHiWhite, color.Bold)
	StepColor    = color.New(color.FgCyan)
	HintColor    = color.New(color.FgYellow, color.Italic)
	DimColor     = color.New(color.FgHiBlack)
)

// Hint pairs a sentinel error with advice printed under it.
type Hint struct {
	Target error
	Text   string
}

// Reporter writes user-facing progress. Diagnostics go through the logger;
// everything a person is meant to read goes through here.
type Reporter struct {
	out   io.Writer
	err   io.Writer
	hints []Hint
}

// NewReporter writes normal output to out and problems to errOut. Nil
// writers default to stdout and stderr.
func NewReporter(out, errOut io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Reporter{out: out, err: errOut}
}

// WithHints returns a copy of r that explains the given errors.
func (r *Reporter) WithHints(hints ...Hint) *Reporter {
	cp := *r
	cp.hints = append(append([]Hint{}, r.hints...), hints...)
	return &cp
}

// Out is the writer for normal output.
func (r *Reporter) Out() io.Writer { return r.out }

// Banner prints a framed title.
func (r *Reporter) Banner(title string) {
	line := strings.Repeat("=", len(title)+4)
	HeadingColor.Fprintln(r.out, line)
	HeadingColor.Fprintf(r.out, "  %s\n", title)
	HeadingColor.Fprintln(r.out, line)
}

// Section prints a section header.
func (r *Reporter) Section(title string) {
	fmt.Fprint(r.out, pterm.DefaultSection.Sprintln(title))
}

// Step announces an action that is about to happen.
func (r *Reporter) Step(format string, a ...interface{}) {
	StepColor.Fprintf(r.out, "==> %s\n", fmt.Sprintf(format, a...))
}

// Success reports a finished action.
func (r *Reporter) Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(r.out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Info prints a plain line.
func (r *Reporter) Info(format string, a ...interface{}) {
	fmt.Fprintf(r.out, "%s\n", fmt.Sprintf(format, a...))
}

// Warn reports a tolerated problem.
func (r *Reporter) Warn(format string, a ...interface{}) {
	WarningColor.Fprintf(r.err, "! %s\n", fmt.Sprintf(format, a...))
}

// Error reports a fatal error and any hint registered for it.
func (r *Reporter) Error(err error) {
	if err == nil {
		return
	}
	ErrorColor.Fprintf(r.err, "Error: %s\n", err)
	for _, h := range r.hints {
		if errors.Is(err, h.Target) {
			HintColor.Fprintf(r.err, "  Hint: %s\n", h.Text)
			return
		}
	}
}

// Label prints a key and value.
func (r *Reporter) Label(key, value string) {
	fmt.Fprintf(r.out, "%s %s\n", Colorize(BoldCyan, key+":"), value)
}

// Table renders rows with the first row as header.
func (r *Reporter) Table(rows [][]string) error {
	if len(rows) <= 1 {
		DimColor.Fprintln(r.out, "No entries")
		return nil
	}
	table := pterm.DefaultTable.
		WithHasHeader(true).
		WithHeaderStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold)).
		WithData(rows)
	s, err := table.Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	fmt.Fprintln(r.out, s)
	return nil
}

// AccessEntry is one line of the post-start summary.
type AccessEntry struct {
	Name string
	URL  string
	Port string
}

// AccessSummary prints where each started component can be reached.
func (r *Reporter) AccessSummary(entries []AccessEntry) error {
	r.Section("Access")
	rows := [][]string{{"COMPONENT", "URL", "PORT"}}
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		rows = append(rows, []string{e.Name, e.URL, PortLabel(e.Port)})
	}
	return r.Table(rows)
}

// PortLabel normalizes a port spec such as "5678", "5678/tcp" or
// "127.0.0.1:5678:5678/tcp" to "5678/tcp". Unparseable specs yield "-".
func PortLabel(spec string) string {
	if spec == "" {
		return "-"
	}
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil || len(mappings) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(mappings))
	for _, m := range mappings {
		labels = append(labels, string(m.Port))
	}
	return strings.Join(labels, ",")
}
