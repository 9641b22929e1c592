package rewrite

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is the number of unchanged lines around each hunk of a
// unified diff.
const diffContext = 3

// TextEdit replaces the bytes [Start, End) of a unit's source with NewText.
type TextEdit struct {
	Start   int    `json:"start"   yaml:"start"`
	End     int    `json:"end"     yaml:"end"`
	NewText string `json:"newText" yaml:"new_text"`
}

// minimalEdits returns the smallest edits turning before into after, with
// offsets shifted by base.
func minimalEdits(base int, before, after string) []TextEdit {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var (
		edits   []TextEdit
		pending *TextEdit
	)

	flush := func() {
		if pending != nil {
			edits = append(edits, *pending)
			pending = nil
		}
	}

	offset := base

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			offset += len(diff.Text)
		case diffmatchpatch.DiffDelete:
			if pending == nil {
				pending = &TextEdit{Start: offset, End: offset}
			}

			offset += len(diff.Text)
			pending.End = offset
		case diffmatchpatch.DiffInsert:
			if pending == nil {
				pending = &TextEdit{Start: offset, End: offset}
			}

			pending.NewText += diff.Text
		}
	}

	flush()

	return edits
}

// ApplyEdits applies edits to src and returns the result. Edits may come in
// any order but must not overlap; src is not modified.
func ApplyEdits(src []byte, edits []TextEdit) ([]byte, error) {
	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b TextEdit) int { return cmp.Compare(a.Start, b.Start) })

	var out strings.Builder

	out.Grow(len(src))

	last := 0

	for _, edit := range sorted {
		if edit.Start < last || edit.End < edit.Start || edit.End > len(src) {
			return nil, fmt.Errorf("%w: [%d,%d) after offset %d", ErrOverlappingEdits, edit.Start, edit.End, last)
		}

		out.Write(src[last:edit.Start])
		out.WriteString(edit.NewText)
		last = edit.End
	}

	out.Write(src[last:])

	return []byte(out.String()), nil
}

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// UnifiedDiff renders the line difference between before and after in
// unified format, or "" when they are equal.
func UnifiedDiff(name string, before, after []byte) string {
	if string(before) == string(after) {
		return ""
	}

	dmp := diffmatchpatch.New()
	left, right, lines := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(left, right, false), lines)

	var flat []diffLine

	for _, diff := range diffs {
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line != "" {
				flat = append(flat, diffLine{op: diff.Type, text: line})
			}
		}
	}

	var out strings.Builder

	fmt.Fprintf(&out, "--- a/%s\n+++ b/%s\n", name, name)

	for _, hunk := range hunks(flat) {
		writeHunk(&out, flat, hunk)
	}

	return out.String()
}

type hunkRange struct{ from, to int }

// hunks groups changed lines with their context, merging groups whose
// context touches.
func hunks(lines []diffLine) []hunkRange {
	var ranges []hunkRange

	for idx, line := range lines {
		if line.op == diffmatchpatch.DiffEqual {
			continue
		}

		from, to := max(idx-diffContext, 0), min(idx+diffContext+1, len(lines))

		if n := len(ranges); n > 0 && from <= ranges[n-1].to {
			ranges[n-1].to = max(ranges[n-1].to, to)

			continue
		}

		ranges = append(ranges, hunkRange{from: from, to: to})
	}

	return ranges
}

func writeHunk(out *strings.Builder, lines []diffLine, hunk hunkRange) {
	oldStart, newStart := 1, 1

	for _, line := range lines[:hunk.from] {
		if line.op != diffmatchpatch.DiffInsert {
			oldStart++
		}

		if line.op != diffmatchpatch.DiffDelete {
			newStart++
		}
	}

	var oldCount, newCount int

	var body strings.Builder

	for _, line := range lines[hunk.from:hunk.to] {
		prefix := " "

		switch line.op {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
			oldCount++
		case diffmatchpatch.DiffInsert:
			prefix = "+"
			newCount++
		case diffmatchpatch.DiffEqual:
			oldCount++
			newCount++
		}

		body.WriteString(prefix + line.text)

		if !strings.HasSuffix(line.text, "\n") {
			body.WriteString("\n\\ No newline at end of file\n")
		}
	}

	fmt.Fprintf(out, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
	out.WriteString(body.String())
}
