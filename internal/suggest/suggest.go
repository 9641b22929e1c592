// Package suggest finds the closest known name to a mistyped one.
package suggest

import (
	"strings"
	"unicode/utf8"
)

// minBudget is the edit budget for short names.
const minBudget = 2

// Closest returns the candidate nearest to name by case-insensitive
// Levenshtein distance. Candidates further than a third of the name's length
// (at least two edits) are not suggested. Ties keep the earlier candidate.
func Closest(name string, candidates []string) (string, bool) {
	budget := max(minBudget, utf8.RuneCountInString(name)/3)
	want := []rune(strings.ToLower(name))

	var (
		d      distance
		best   string
		bestAt = budget + 1
	)

	for _, candidate := range candidates {
		dist := d.between(want, []rune(strings.ToLower(candidate)))
		if dist < bestAt {
			best, bestAt = candidate, dist
		}
	}

	return best, bestAt <= budget
}

// distance reuses one column across comparisons.
type distance struct {
	column []int
}

// between computes the edit distance in O(len(a)) space, keeping a single
// column of the dynamic programming table.
func (d *distance) between(a, b []rune) int {
	if len(b) == 0 {
		return len(a)
	}

	if cap(d.column) < len(a)+1 {
		d.column = make([]int, len(a)+1)
	}

	column := d.column[:len(a)+1]
	for i := range column {
		column[i] = i
	}

	for j, rb := range b {
		diag := column[0]
		column[0] = j + 1

		for i, ra := range a {
			cost := 1
			if ra == rb {
				cost = 0
			}

			prev := column[i+1]
			column[i+1] = min(prev+1, column[i]+1, diag+cost)
			diag = prev
		}
	}

	return column[len(a)]
}
