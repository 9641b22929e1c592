package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// findingView is the printable form of one finding.
type findingView struct {
	Unit        string   `json:"unit"                  yaml:"unit"`
	Line        int      `json:"line"                  yaml:"line"`
	Col         int      `json:"col"                   yaml:"col"`
	Template    string   `json:"template"              yaml:"template"`
	Text        string   `json:"text"                  yaml:"text"`
	Replacement string   `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Imports     []string `json:"imports,omitempty"     yaml:"imports,omitempty"`
	Reason      string   `json:"reason,omitempty"      yaml:"reason,omitempty"`
	Suppressed  bool     `json:"suppressed,omitempty"  yaml:"suppressed,omitempty"`
}

type unitError struct {
	Unit  string `json:"unit"  yaml:"unit"`
	Error string `json:"error" yaml:"error"`
}

type checkSummary struct {
	Findings []findingView `json:"findings"         yaml:"findings"`
	Errors   []unitError   `json:"errors,omitempty" yaml:"errors,omitempty"`
	Units    int           `json:"units"            yaml:"units"`
	Rewrites int           `json:"rewrites"         yaml:"rewrites"`
	Elapsed  string        `json:"elapsed"          yaml:"elapsed"`
}

type applySummary struct {
	Files   []*fileResult `json:"files"   yaml:"files"`
	Checked int           `json:"checked" yaml:"checked"`
	Elapsed string        `json:"elapsed" yaml:"elapsed"`
}

type compileSummary struct {
	Dir       string                `json:"dir"       yaml:"dir"`
	Templates []store.ManifestEntry `json:"templates" yaml:"templates"`
}

// encode writes v in the structured formats; it reports false for text.
func (a *app) encode(v any) (bool, error) {
	switch a.cfg.Output.Format {
	case formatJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")

		err := enc.Encode(v)
		if err != nil {
			return true, fmt.Errorf("encode json: %w", err)
		}

		return true, nil
	case formatYAML:
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)

		err := enc.Encode(v)
		if err == nil {
			err = enc.Close()
		}

		if err != nil {
			return true, fmt.Errorf("encode yaml: %w", err)
		}

		return true, nil
	default:
		return false, nil
	}
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func (a *app) renderReports(reports []*check.Report, elapsed time.Duration) error {
	summary := checkSummary{
		Findings: []findingView{},
		Units:    len(reports),
		Elapsed:  elapsed.Round(time.Millisecond).String(),
	}

	for _, report := range reports {
		if report.Err != nil {
			summary.Errors = append(summary.Errors, unitError{Unit: report.Unit, Error: report.Error})

			continue
		}

		for i := range report.Findings {
			f := &report.Findings[i]

			view := findingView{
				Unit:       report.Unit,
				Line:       f.Span.Line,
				Col:        f.Span.Col,
				Template:   f.Template,
				Text:       f.Text,
				Reason:     f.Reason,
				Suppressed: f.Suppressed,
			}

			if f.Edit != nil {
				view.Replacement = f.Edit.Replacement
				view.Imports = f.Edit.Imports
			}

			if f.Rewritable() {
				summary.Rewrites++
			}

			summary.Findings = append(summary.Findings, view)
		}
	}

	done, err := a.encode(summary)
	if done {
		return err
	}

	if len(summary.Findings) > 0 {
		tbl := newTable(a.stdout)
		tbl.AppendHeader(table.Row{"Location", "Template", "Match", "Rewrite"})

		for _, f := range summary.Findings {
			tbl.AppendRow(table.Row{
				fmt.Sprintf("%s:%d:%d", f.Unit, f.Line, f.Col),
				f.Template,
				oneLine(f.Text),
				rewriteCell(f),
			})
		}

		tbl.Render()
	}

	for _, failure := range summary.Errors {
		color.New(color.FgRed).Fprintf(a.stdout, "%s: %s\n", failure.Unit, failure.Error)
	}

	fmt.Fprintf(a.stdout, "%s in %s, %s rewritable, checked %s in %s\n",
		plural(len(summary.Findings), "match", "matches"),
		plural(summary.Units-len(summary.Errors), "unit", "units"),
		humanize.Comma(int64(summary.Rewrites)),
		plural(summary.Units, "unit", "units"),
		summary.Elapsed)

	return nil
}

func rewriteCell(f findingView) string {
	switch {
	case f.Suppressed:
		return color.YellowString("overlaps earlier rewrite")
	case f.Reason != "":
		return color.YellowString("detection only: %s", f.Reason)
	case f.Replacement != "":
		return color.GreenString(oneLine(f.Replacement))
	default:
		return ""
	}
}

func (a *app) renderApply(results []*fileResult, total int, elapsed time.Duration) error {
	summary := applySummary{
		Files:   results,
		Checked: total,
		Elapsed: elapsed.Round(time.Millisecond).String(),
	}

	if summary.Files == nil {
		summary.Files = []*fileResult{}
	}

	done, err := a.encode(summary)
	if done {
		return err
	}

	rewrites := 0

	for _, result := range results {
		if result.Error != "" {
			color.New(color.FgRed).Fprintf(a.stderr, "%s: %s\n", result.Path, result.Error)
		}

		if result.Diff != "" {
			fmt.Fprint(a.stdout, colorDiff(result.Diff))
		}

		rewrites += result.Rewrites
	}

	fmt.Fprintf(a.stderr, "%s applied to %s of %s in %s\n",
		plural(rewrites, "rewrite", "rewrites"),
		humanize.Comma(int64(changedFiles(results))),
		plural(total, "file", "files"),
		summary.Elapsed)

	return nil
}

func changedFiles(results []*fileResult) int {
	n := 0

	for _, result := range results {
		if result.Rewrites > 0 {
			n++
		}
	}

	return n
}

func colorDiff(diff string) string {
	if color.NoColor {
		return diff
	}

	lines := strings.SplitAfter(diff, "\n")

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = color.New(color.Bold).Sprint(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = color.CyanString(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = color.GreenString(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = color.RedString(line)
		}
	}

	return strings.Join(lines, "")
}

func (a *app) renderCompile(entries []store.ManifestEntry, outDir string) error {
	summary := compileSummary{Dir: outDir, Templates: entries}
	if summary.Templates == nil {
		summary.Templates = []store.ManifestEntry{}
	}

	done, err := a.encode(summary)
	if done {
		return err
	}

	tbl := newTable(a.stdout)
	tbl.AppendHeader(table.Row{"Template", "Artifact", "Fingerprint"})

	for _, entry := range entries {
		tbl.AppendRow(table.Row{entry.Name, entry.File, shortFingerprint(entry.Fingerprint)})
	}

	tbl.Render()

	color.New(color.FgGreen).Fprintf(a.stdout, "%s written to %s\n",
		plural(len(entries), "template", "templates"), outDir)

	return nil
}

func (a *app) renderTemplates(views []templateView, detailed bool) error {
	done, err := a.encode(views)
	if done {
		return err
	}

	tbl := newTable(a.stdout)
	tbl.AppendHeader(table.Row{"Template", "Version", "Fingerprint", "Size", "Imports", "Source"})

	for _, view := range views {
		name := view.Name
		if view.NonIdempotent {
			name += color.YellowString(" (non-idempotent)")
		}

		tbl.AppendRow(table.Row{
			name,
			view.Version,
			shortFingerprint(view.Fingerprint),
			humanize.Bytes(uint64(max(view.Size, 0))),
			strings.Join(view.Imports, ", "),
			view.File,
		})
	}

	tbl.AppendFooter(table.Row{"Total: " + plural(len(views), "template", "templates")})
	tbl.Render()

	if !detailed {
		return nil
	}

	for _, view := range views {
		fmt.Fprintln(a.stdout)
		color.New(color.Bold).Fprintln(a.stdout, view.Name)

		for _, decl := range view.Placeholders {
			fmt.Fprintf(a.stdout, "  placeholder %s%s %s\n", decl.Name, variadicMark(decl.Variadic), constraintText(decl))
		}

		for i, before := range view.Befores {
			fmt.Fprintf(a.stdout, "  before[%d] %s\n", i, before)
		}

		for i, after := range view.Afters {
			fmt.Fprintf(a.stdout, "  after[%d]  %s\n", i, after)
		}
	}

	return nil
}

func constraintText(decl placeholderView) string {
	if len(decl.Types) == 0 {
		return "any"
	}

	text := strings.Join(decl.Types, " | ")
	if decl.Exact {
		text = "exactly " + text
	}

	return text
}

func variadicMark(variadic bool) string {
	if variadic {
		return "..."
	}

	return ""
}

// shortFingerprint keeps the first 12 hex digits.
func shortFingerprint(fp string) string {
	const shortLen = 12

	if len(fp) <= shortLen {
		return fp
	}

	return fp[:shortLen]
}

func oneLine(s string) string {
	const maxCell = 60

	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxCell {
		s = s[:maxCell-3] + "..."
	}

	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}

	return humanize.Comma(int64(n)) + " " + many
}
