package check

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// ErrRetriggers reports a template whose after alternatives match one of its
// own befores, so applying it repeatedly would not reach a fixed point.
var ErrRetriggers = errors.New("template retriggers on its own output")

// Retrigger names a before alternative that matches inside an after
// alternative of the same template.
type Retrigger struct {
	Before int
	After  int
}

// Retriggers returns every (before, after) pair where the before matches
// somewhere in the after. Placeholders in the after match any before hole,
// since their bindings are unknown until a real match.
func Retriggers(tmpl *pattern.Template) ([]Retrigger, error) {
	err := match.CheckTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	matcher := match.New(match.WithLenientTypes())

	var found []Retrigger

	for afterIdx, after := range tmpl.Afters {
		if after == nil {
			continue
		}

		target := tree.FromPattern(after.StripPositions())

		for beforeIdx, before := range tmpl.Befores {
			single := &pattern.Template{Name: tmpl.Name, Befores: []*pattern.Node{before}, Placeholders: tmpl.Placeholders}

			results, matchErr := matcher.MatchTemplate(single, target)
			if matchErr != nil {
				return nil, matchErr
			}

			if len(results) > 0 {
				found = append(found, Retrigger{Before: beforeIdx, After: afterIdx})
			}
		}
	}

	return found, nil
}

// CheckIdempotent fails with [ErrRetriggers] when tmpl retriggers and is not
// marked non-idempotent.
func CheckIdempotent(tmpl *pattern.Template) error {
	if tmpl.NonIdempotent {
		return nil
	}

	found, err := Retriggers(tmpl)
	if err != nil {
		return err
	}

	if len(found) > 0 {
		return fmt.Errorf("%w: %s: before %d matches after %d", ErrRetriggers, tmpl.Name, found[0].Before, found[0].After)
	}

	return nil
}
