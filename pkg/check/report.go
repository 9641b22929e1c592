package check

import (
	"slices"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// Finding is one match of a template in a unit.
type Finding struct {
	Template    string         `json:"template"`
	Alternative int            `json:"alternative"`
	Root        tree.NodeID    `json:"root"`
	Window      pattern.Window `json:"window"`
	Span        pattern.Span   `json:"span"`
	// Text is the matched source text.
	Text string `json:"text"`
	// Edit is the rewrite of the match; nil for detection-only findings.
	Edit *rewrite.Edit `json:"edit,omitempty"`
	// Reason explains why a finding is detection-only.
	Reason string `json:"reason,omitempty"`
	// Suppressed marks a finding inside the span of an earlier rewrite.
	Suppressed bool `json:"suppressed,omitempty"`

	err error
}

// RewriteErr returns the error that made the finding detection-only, if any.
func (f *Finding) RewriteErr() error {
	return f.err
}

// Rewritable reports whether the finding carries an edit that will be applied.
func (f *Finding) Rewritable() bool {
	return f.Edit != nil && !f.Suppressed
}

// Report is the outcome of checking one unit.
type Report struct {
	Unit     string    `json:"unit"`
	Language string    `json:"language"`
	Findings []Finding `json:"findings"`
	// Err is the failure that aborted the unit: an invariant violation or a
	// load error. Findings are empty when it is set.
	Err error `json:"-"`
	// Error mirrors Err for serialized reports.
	Error string `json:"error,omitempty"`
}

func (r *Report) fail(err error) *Report {
	r.Err = err
	r.Error = err.Error()
	r.Findings = nil

	return r
}

// Edits returns the edits that will be applied, in source order.
func (r *Report) Edits() []*rewrite.Edit {
	var edits []*rewrite.Edit

	for idx := range r.Findings {
		if r.Findings[idx].Rewritable() {
			edits = append(edits, r.Findings[idx].Edit)
		}
	}

	return edits
}

// Imports returns the sorted imports the applied edits need.
func (r *Report) Imports() []string {
	var imports []string

	for _, edit := range r.Edits() {
		imports = append(imports, edit.Imports...)
	}

	slices.Sort(imports)

	return slices.Compact(imports)
}

// Counts returns the number of rewritable and detection-only findings.
func (r *Report) Counts() (rewrites, detectionOnly int) {
	for idx := range r.Findings {
		if r.Findings[idx].Rewritable() {
			rewrites++
		} else {
			detectionOnly++
		}
	}

	return rewrites, detectionOnly
}

// Apply applies every selected edit to source. It fails without partial
// results when edits conflict.
func (r *Report) Apply(source []byte) ([]byte, error) {
	var edits []rewrite.TextEdit

	for _, edit := range r.Edits() {
		edits = append(edits, edit.TextEdits...)
	}

	if len(edits) == 0 {
		return source, nil
	}

	return rewrite.ApplyEdits(source, edits)
}
