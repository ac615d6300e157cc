package record

import "github.com/ceplan/itpei/normalize"

// =============================================================================
// ENUMERATED FIELDS
// =============================================================================

type PlanType string

const (
	PlanFormulated PlanType = "Formulado"
	PlanExpanded   PlanType = "Ampliado"
	PlanUpdated    PlanType = "Actualizado"
)

type ReviewStage string

const (
	StageReportIssued   ReviewStage = "IT Emitido"
	StageReportPending  ReviewStage = "Para emisión de IT"
	StageReviewDNCP     ReviewStage = "Revisión DNCP"
	StageReviewDNSE     ReviewStage = "Revisión DNSE"
	StageReviewDNPE     ReviewStage = "Revisión DNPE"
	StageUnitCorrection ReviewStage = "Subsanación del pliego"
)

type Validity string

const (
	ValidityYes Validity = "Sí"
	ValidityNo  Validity = "No"
)

type Status string

const (
	StatusInProcess Status = "En proceso"
	StatusIssued    Status = "Emitido"
)

// Display order used by forms and option listings.
var (
	PlanTypes    = []PlanType{PlanFormulated, PlanExpanded, PlanUpdated}
	ReviewStages = []ReviewStage{StageReportIssued, StageReportPending, StageReviewDNCP, StageReviewDNSE, StageReviewDNPE, StageUnitCorrection}
	Validities   = []Validity{ValidityYes, ValidityNo}
	Statuses     = []Status{StatusInProcess, StatusIssued}
)

// =============================================================================
// VARIANT TABLES - normalized spelling -> canonical value
// =============================================================================

var (
	StatusChoices = normalize.NewChoices(map[string]string{
		"emitido":    string(StatusIssued),
		"en proceso": string(StatusInProcess),
		"proceso":    string(StatusInProcess),
	})

	ValidityChoices = normalize.NewChoices(map[string]string{
		"sí": string(ValidityYes),
		"si": string(ValidityYes),
		"no": string(ValidityNo),
	})

	PlanTypeChoices = normalize.NewChoices(map[string]string{
		"formulado":   string(PlanFormulated),
		"ampliado":    string(PlanExpanded),
		"actualizado": string(PlanUpdated),
	})

	ReviewStageChoices = normalize.NewChoices(map[string]string{
		"it emitido":             string(StageReportIssued),
		"para emisión de it":     string(StageReportPending),
		"para emision de it":     string(StageReportPending),
		"revisión dncp":          string(StageReviewDNCP),
		"revision dncp":          string(StageReviewDNCP),
		"revisión dnse":          string(StageReviewDNSE),
		"revision dnse":          string(StageReviewDNSE),
		"revisión dnpe":          string(StageReviewDNPE),
		"revision dnpe":          string(StageReviewDNPE),
		"subsanación del pliego": string(StageUnitCorrection),
		"subsanacion del pliego": string(StageUnitCorrection),
	})
)
