package record

import (
	"regexp"
)

// =============================================================================
// FORM - The editable field set of one record
// =============================================================================

// Form carries what a user edits. Identity, year and audit columns live
// outside of it.
type Form struct {
	PlanType       PlanType
	ReviewStage    ReviewStage
	ReceptionDate  Date
	Articulation   string
	DerivationDate Date
	Period         string
	RevisionCount  int
	Comment        string
	Validity       Validity
	Status         Status
	FileRef        string
	ReportDate     Date
	ReportNumber   string
	LetterDate     Date
	LetterNumber   string
}

// DefaultForm is the blank form for a new record.
func DefaultForm() Form {
	return Form{
		PlanType:    PlanFormulated,
		ReviewStage: StageReportIssued,
		Validity:    ValidityYes,
		Status:      StatusInProcess,
	}
}

// Apply copies the form fields onto r.
func (f Form) Apply(r *Record) {
	r.PlanType = f.PlanType
	r.ReviewStage = f.ReviewStage
	r.ReceptionDate = f.ReceptionDate
	r.Articulation = f.Articulation
	r.DerivationDate = f.DerivationDate
	r.Period = f.Period
	r.RevisionCount = f.RevisionCount
	r.Comment = f.Comment
	r.Validity = f.Validity
	r.Status = f.Status
	r.FileRef = f.FileRef
	r.ReportDate = f.ReportDate
	r.ReportNumber = f.ReportNumber
	r.LetterDate = f.LetterDate
	r.LetterNumber = f.LetterNumber
}

// FormOf extracts the editable fields of a stored record.
func FormOf(r Record) Form {
	return Form{
		PlanType:       r.PlanType,
		ReviewStage:    r.ReviewStage,
		ReceptionDate:  r.ReceptionDate,
		Articulation:   r.Articulation,
		DerivationDate: r.DerivationDate,
		Period:         r.Period,
		RevisionCount:  r.RevisionCount,
		Comment:        r.Comment,
		Validity:       r.Validity,
		Status:         r.Status,
		FileRef:        r.FileRef,
		ReportDate:     r.ReportDate,
		ReportNumber:   r.ReportNumber,
		LetterDate:     r.LetterDate,
		LetterNumber:   r.LetterNumber,
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var periodPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// CheckPeriod accepts "" or YYYY-YYYY.
func CheckPeriod(period string) error {
	if period != "" && !periodPattern.MatchString(period) {
		return &ValidationError{Field: ColPeriod, Reason: "must match YYYY-YYYY (e.g. 2025-2027)"}
	}
	return nil
}

// CheckIssue enforces the prerequisites of status "Emitido": expediente,
// IT number and IT date.
func (f Form) CheckIssue() error {
	if f.Status != StatusIssued {
		return nil
	}
	var errs ValidationErrors
	if f.FileRef == "" {
		errs = append(errs, &ValidationError{Field: ColFileRef, Reason: "required when status is Emitido"})
	}
	if f.ReportNumber == "" {
		errs = append(errs, &ValidationError{Field: ColReportNumber, Reason: "required when status is Emitido"})
	}
	if f.ReportDate.IsZero() {
		errs = append(errs, &ValidationError{Field: ColReportDate, Reason: "required when status is Emitido"})
	}
	return errs.Err()
}

// CheckChoices rejects values outside the fixed enumerations.
func (f Form) CheckChoices() error {
	var errs ValidationErrors
	if !containsValue(PlanTypes, f.PlanType) {
		errs = append(errs, &ValidationError{Field: ColPlanType, Reason: "unknown plan type " + quote(string(f.PlanType))})
	}
	if !containsValue(Validities, f.Validity) {
		errs = append(errs, &ValidationError{Field: ColValidity, Reason: "unknown validity " + quote(string(f.Validity))})
	}
	errs = append(errs, f.editableChoices()...)
	return errs.Err()
}

// CheckEditableChoices is CheckChoices restricted to the columns an update
// writes; plan type and validity are frozen and never sent.
func (f Form) CheckEditableChoices() error {
	return f.editableChoices().Err()
}

func (f Form) editableChoices() ValidationErrors {
	var errs ValidationErrors
	if !containsValue(ReviewStages, f.ReviewStage) {
		errs = append(errs, &ValidationError{Field: ColReviewStage, Reason: "unknown review stage " + quote(string(f.ReviewStage))})
	}
	if !containsValue(Statuses, f.Status) {
		errs = append(errs, &ValidationError{Field: ColStatus, Reason: "unknown status " + quote(string(f.Status))})
	}
	if f.RevisionCount < 0 {
		errs = append(errs, &ValidationError{Field: ColRevisionCount, Reason: "must not be negative"})
	}
	return errs
}

// CheckArticulation requires the value to be one of options. An empty option
// set only admits an empty articulation.
func CheckArticulation(value string, options []string) error {
	if len(options) == 0 {
		if value == "" {
			return nil
		}
		return &ValidationError{Field: ColArticulation, Reason: "no articulation applies to this government level"}
	}
	for _, o := range options {
		if o == value {
			return nil
		}
	}
	return &ValidationError{Field: ColArticulation, Reason: "must be one of the options for the unit's government level"}
}

func containsValue[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + s + `"`
}

// Merge collects the failures of several checks into one error.
func Merge(errs ...error) error {
	var out ValidationErrors
	for _, err := range errs {
		switch e := err.(type) {
		case nil:
		case ValidationErrors:
			out = append(out, e...)
		case *ValidationError:
			out = append(out, e)
		default:
			return err
		}
	}
	return out.Err()
}
