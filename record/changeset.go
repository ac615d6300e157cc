package record

import (
	"sort"

	"github.com/ceplan/itpei/normalize"
)

// Changeset holds the columns an update writes, keyed by column name.
// Absent keys are left untouched.
type Changeset map[string]any

// Columns returns the keys in a stable order.
func (c Changeset) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Check rejects empty changesets, frozen columns and unknown columns.
func (c Changeset) Check() error {
	if len(c) == 0 {
		return &ValidationError{Field: "changeset", Reason: "nothing to update"}
	}
	var errs ValidationErrors
	for _, col := range c.Columns() {
		switch {
		case IsFrozen(col):
			errs = append(errs, &ValidationError{Field: col, Reason: "frozen after insert"})
		case !IsUpdatable(col):
			errs = append(errs, &ValidationError{Field: col, Reason: "not updatable"})
		}
	}
	return errs.Err()
}

// Apply writes the changeset onto r. Callers run Check first.
func (c Changeset) Apply(r *Record) {
	for col, v := range c {
		switch col {
		case ColStatus:
			r.Status = Status(normalize.String(v))
		case ColResponsible:
			r.Responsible = normalize.String(v)
		case ColRevisionCount:
			r.RevisionCount = normalize.IntOr(v, 0)
		case ColDerivationDate:
			r.DerivationDate = asDate(v)
		case ColReviewStage:
			r.ReviewStage = ReviewStage(normalize.String(v))
		case ColComment:
			r.Comment = normalize.String(v)
		case ColFileRef:
			r.FileRef = normalize.String(v)
		case ColReportDate:
			r.ReportDate = asDate(v)
		case ColReportNumber:
			r.ReportNumber = normalize.String(v)
		case ColLetterDate:
			r.LetterDate = asDate(v)
		case ColLetterNumber:
			r.LetterNumber = normalize.String(v)
		case ColNG1:
			r.NG1 = normalize.String(v)
		case ColNG2:
			r.NG2 = normalize.String(v)
		}
	}
}

// SQLValue converts a changeset value into something every driver accepts.
func SQLValue(v any) any {
	switch x := v.(type) {
	case Date:
		if x.IsZero() {
			return nil
		}
		return x.Time
	case Status:
		return string(x)
	case ReviewStage:
		return string(x)
	case PlanType:
		return string(x)
	case Validity:
		return string(x)
	}
	return v
}

func asDate(v any) Date {
	if d, ok := v.(Date); ok {
		return d
	}
	t, ok := normalize.Date(v)
	if !ok {
		return Date{}
	}
	return Date{Time: t}
}
