// Package authoring holds the editable copy of a form definition while an
// author works on it. Every committed edit rebuilds the dependency index
// once and publishes an immutable snapshot for readers.
package authoring

import (
	"errors"
	"strings"

	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
)

// ErrCycle marks a validation problem where autofill rules read each
// other's answers in a loop.
var ErrCycle = errors.New("autofill cycle")

// Validate runs the structural checks of form.Validate, builds the
// dependency index and reports autofill cycles. The index is returned only
// when the definition is valid.
func Validate(def *form.Definition, reg expr.Registry) (*depindex.Index, error) {
	if err := form.Validate(def, reg); err != nil {
		return nil, err
	}
	idx := depindex.Build(def)
	verr := &form.ValidationError{}
	for _, cycle := range idx.Cycles() {
		loop := append(append([]string{}, cycle...), cycle[0])
		verr.Add(form.Problem{
			LinkID:  cycle[0],
			Field:   "autofillValues",
			Message: "autofill cycle: " + strings.Join(loop, " → "),
			Err:     ErrCycle,
		})
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return idx, nil
}
