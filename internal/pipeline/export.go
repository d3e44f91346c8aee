package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"visareview/internal"
	"visareview/internal/util"
)

const (
	sheetRecords    = "Records"
	sheetAcceptance = "Acceptance"
	sheetErrors     = "Errors"
	sheetSummary    = "Summary"
)

// Report is everything one review run produced.
type Report struct {
	Applicants     []internal.ApplicantRecord `json:"applicants"`
	Reconciliation Reconciliation             `json:"reconciliation"`
	Sequence       SequenceAnalysis           `json:"sequence"`
	Highlights     []HighlightReason          `json:"highlights"`
	Compound       CompoundAnalysis           `json:"compound"`
	Visa           VisaDistribution           `json:"visa"`
	UsedFallback   bool                       `json:"usedFallback"`
}

func ExportReportToXLSX(r Report, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetRecords); err != nil {
		return err
	}
	for _, name := range []string{sheetAcceptance, sheetErrors, sheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	writeRecordsSheet(f, r)
	writeAcceptanceSheet(f, r)
	writeErrorsSheet(f, r)
	writeSummarySheet(f, r)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func rowSetter(f *excelize.File, sheet string, r int) func(col int, value any) {
	return func(col int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, r)
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func writeRecordsSheet(f *excelize.File, r Report) {
	writeHeader(f, sheetRecords, []string{
		"row", "index", "passport_number", "surname", "given_name", "gender",
		"birth_date", "expiry_date", "visa_type", "visa_class", "team_acceptance_number",
		"match_reason", "extracted_passport_number", "page_number",
	})

	for i, a := range r.Applicants {
		set := rowSetter(f, sheetRecords, i+2)
		set(1, a.Row+1)
		set(2, a.Index)
		set(3, a.PassportNumber)
		set(4, a.Surname)
		set(5, a.GivenName)
		set(6, a.Gender)
		set(7, util.FormatDate(a.BirthDate))
		set(8, util.FormatDate(a.ExpiryDate))
		set(9, util.DerefString(a.VisaType))
		set(10, string(ClassifyVisa(a.VisaType)))
		set(11, a.TeamAcceptanceNumber)
		if i < len(r.Reconciliation.Pairs) {
			pair := r.Reconciliation.Pairs[i]
			set(12, string(pair.Reason))
			if pair.Extracted != nil {
				set(13, pair.Extracted.PassportNumber)
				set(14, pair.Extracted.PageNumber)
			}
		}
	}
}

func writeAcceptanceSheet(f *excelize.File, r Report) {
	writeHeader(f, sheetAcceptance, []string{
		"position", "acceptance_number", "passport_number", "surname", "given_name",
		"team_acceptance_number", "highlighted", "position_label", "highlight_reason",
	})

	for i, item := range r.Sequence.Items {
		set := rowSetter(f, sheetAcceptance, i+2)
		set(1, i+1)
		set(2, item.Entry.AcceptanceNumber)
		set(3, item.Entry.PassportNumber)
		set(4, item.Entry.Surname)
		set(5, item.Entry.GivenName)
		set(6, item.Entry.TeamAcceptanceNumber)
		set(7, item.IsHighlighted)
		set(8, string(item.Position))
		if i < len(r.Highlights) {
			set(9, r.Highlights[i].String())
		}
	}
}

func writeErrorsSheet(f *excelize.File, r Report) {
	writeHeader(f, sheetErrors, []string{"row", "passport_number", "errors", "page_number", "suggestion"})

	for i, e := range r.Reconciliation.Errors {
		set := rowSetter(f, sheetErrors, i+2)
		set(1, e.Index+1)
		set(2, e.PassportNumber)
		set(3, strings.Join(e.Errors, "; "))
		set(4, derefInt(e.PageNumber))
		set(5, util.DerefString(e.Suggestion))
	}
}

func writeSummarySheet(f *excelize.File, r Report) {
	rows := [][2]any{
		{"applicants", len(r.Applicants)},
		{"matched", r.Reconciliation.Matched},
		{"error_records", len(r.Reconciliation.Errors)},
		{"discontinuities", len(r.Sequence.Discontinuities)},
		{"empty_acceptance_numbers", len(r.Sequence.EmptyItems)},
		{"team_prefix", r.Compound.Prefix},
		{"team_prefix_consistent", r.Compound.IsConsistent},
		{"team_inconsistent_items", len(r.Compound.InconsistentItems)},
		{"visa_3m", r.Visa.ThreeMonth},
		{"visa_5m", r.Visa.FiveYear},
		{"visa_other", r.Visa.Other},
		{"visa_empty", r.Visa.Empty},
		{"acceptance_fallback", r.UsedFallback},
	}
	if p := r.Compound.Parts; p != nil {
		rows = append(rows,
			[2]any{"team_agency_code", p.AgencyCode},
			[2]any{"team_submission_date", p.SubmissionDate},
			[2]any{"team_sequence", p.Sequence},
		)
	}
	for i, kv := range rows {
		set := rowSetter(f, sheetSummary, i+1)
		set(1, kv[0])
		set(2, kv[1])
	}
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
