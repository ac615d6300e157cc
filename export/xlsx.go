// Package export writes review history as an Excel workbook and reads
// spreadsheet rows back for prefill.
//
// Headers use the legacy spreadsheet labels, so a downloaded history can be
// handed straight back to mapper.FormFromRow.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ceplan/itpei/mapper"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/units"
)

// SheetName is the worksheet History writes to.
const SheetName = "Historial IT PEI"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrNoRows is returned by ReadRows when the sheet has no data rows.
var ErrNoRows = errors.New("spreadsheet has no data rows")

type column struct {
	header string
	value  func(r record.Record) any
}

var columns = []column{
	{"id", func(r record.Record) any { return r.ID }},
	{"Código", func(r record.Record) any { return r.UnitCode }},
	{"Año", func(r record.Record) any { return r.Year }},
	{"NG", func(r record.Record) any { return r.NG1 }},
	{mapper.Label(mapper.FieldReceptionDate), func(r record.Record) any { return r.ReceptionDate.String() }},
	{mapper.Label(mapper.FieldPlanType), func(r record.Record) any { return string(r.PlanType) }},
	{mapper.Label(mapper.FieldPeriod), func(r record.Record) any { return r.Period }},
	{mapper.Label(mapper.FieldValidity), func(r record.Record) any { return string(r.Validity) }},
	{mapper.Label(mapper.FieldArticulation), func(r record.Record) any { return r.Articulation }},
	{mapper.Label(mapper.FieldReviewStage), func(r record.Record) any { return string(r.ReviewStage) }},
	{mapper.Label(mapper.FieldDerivationDate), func(r record.Record) any { return r.DerivationDate.String() }},
	{mapper.Label(mapper.FieldRevisionCount), func(r record.Record) any { return r.RevisionCount }},
	{mapper.Label(mapper.FieldStatus), func(r record.Record) any { return string(r.Status) }},
	{"Responsable institucional", func(r record.Record) any { return r.Responsible }},
	{mapper.Label(mapper.FieldFileRef), func(r record.Record) any { return r.FileRef }},
	{mapper.Label(mapper.FieldReportDate), func(r record.Record) any { return r.ReportDate.String() }},
	{mapper.Label(mapper.FieldReportNumber), func(r record.Record) any { return r.ReportNumber }},
	{mapper.Label(mapper.FieldLetterDate), func(r record.Record) any { return r.LetterDate.String() }},
	{mapper.Label(mapper.FieldLetterNumber), func(r record.Record) any { return r.LetterNumber }},
	{mapper.Label(mapper.FieldComment), func(r record.Record) any { return r.Comment }},
	{"Registrado", func(r record.Record) any {
		if r.CreatedAt.IsZero() {
			return ""
		}
		return r.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	}},
	{"Registrado por", func(r record.Record) any { return r.CreatedBy }},
}

// History writes one unit's records, in the order given, to w.
func History(w io.Writer, unit units.Unit, recs []record.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, c.header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range recs {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = c.value(rec)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", rec.ID, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if unit.Code != "" {
		if err := f.SetDocProps(&excelize.DocProperties{
			Title:   "Historial IT PEI",
			Subject: unit.Label(),
		}); err != nil {
			return fmt.Errorf("failed to set properties: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadRows reads the active sheet of a workbook into header-keyed rows.
// Empty cells are left out so mapper lookups fall through to defaults.
func ReadRows(r io.Reader) ([]mapper.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(grid) < 2 {
		return nil, ErrNoRows
	}

	header := grid[0]
	var rows []mapper.Row
	for _, cells := range grid[1:] {
		row := mapper.Row{}
		for i, cell := range cells {
			if i >= len(header) || strings.TrimSpace(cell) == "" {
				continue
			}
			row[strings.TrimSpace(header[i])] = cell
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}
