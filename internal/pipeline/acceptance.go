package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"visareview/internal"
	"visareview/internal/util"
)

// ErrNoImportData means neither an acceptance list nor an applicant import
// is available, so there is nothing to review.
var ErrNoImportData = errors.New("no applicant import loaded: upload the applicant spreadsheet first")

var errNoAcceptanceHeader = errors.New("acceptance list has no recognizable header row")

// ReadAcceptanceList loads the authority's acceptance-number list from an
// .html, .csv or .xlsx file.
func ReadAcceptanceList(path string) ([]internal.AcceptanceEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAcceptanceList(filepath.Base(path), raw)
}

func ParseAcceptanceList(name string, content []byte) ([]internal.AcceptanceEntry, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return parseAcceptanceHTML(content)
	}

	rows, err := readTable(name, content)
	if err != nil {
		return nil, err
	}
	source := internal.SourceCSV
	if strings.HasPrefix(strings.ToLower(filepath.Ext(name)), ".xls") {
		source = internal.SourceXLSX
	}
	return acceptanceFromRows(rows, source)
}

func parseAcceptanceHTML(content []byte) ([]internal.AcceptanceEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []internal.AcceptanceEntry
	var lastErr error
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := [][]string{}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		entries, err := acceptanceFromRows(rows, internal.SourceHTMLTable)
		if err != nil {
			lastErr = err
			return true
		}
		out = entries
		return false
	})
	if out == nil {
		if lastErr == nil {
			lastErr = errors.New("no table found")
		}
		return nil, lastErr
	}
	return out, nil
}

// acceptanceFromRows needs a header naming at least the acceptance number
// column; positional guessing is not attempted for this list.
func acceptanceFromRows(rows [][]string, source internal.RecordSource) ([]internal.AcceptanceEntry, error) {
	if len(rows) == 0 {
		return nil, errNoAcceptanceHeader
	}
	// A lone acceptance-number header is enough here.
	layout := ColumnLayout{Columns: headerColumns(rows[0]), HasHeader: true}
	if !layout.Has(ColAcceptanceNumber) {
		return nil, errNoAcceptanceHeader
	}

	out := []internal.AcceptanceEntry{}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		entry := internal.AcceptanceEntry{
			AcceptanceNumber:     layout.Value(row, ColAcceptanceNumber),
			TeamAcceptanceNumber: layout.Value(row, ColTeamAcceptanceNumber),
			PassportNumber:       layout.Value(row, ColPassportNumber),
			Surname:              layout.Value(row, ColSurname),
			GivenName:            layout.Value(row, ColGivenName),
			ChineseName:          layout.Value(row, ColChineseName),
			Source:               source,
		}
		if v, ok := layout.Get(row, ColVisaType); ok && v != "" {
			entry.VisaType = util.StringPtr(v)
		}
		out = append(out, entry)
	}
	return out, nil
}

// SynthesizeAcceptance builds the acceptance list from the applicant import
// alone, using each record's ordinal index as its acceptance number.
func SynthesizeAcceptance(applicants []internal.ApplicantRecord) []internal.AcceptanceEntry {
	out := make([]internal.AcceptanceEntry, 0, len(applicants))
	for _, a := range applicants {
		var visa *string
		if a.VisaType != nil && strings.TrimSpace(*a.VisaType) != "" {
			visa = util.StringPtr(*a.VisaType)
		}
		out = append(out, internal.AcceptanceEntry{
			AcceptanceNumber:     strings.TrimSpace(a.Index),
			TeamAcceptanceNumber: a.TeamAcceptanceNumber,
			PassportNumber:       strings.TrimSpace(a.PassportNumber),
			Surname:              a.Surname,
			GivenName:            a.GivenName,
			ChineseName:          util.DerefString(a.ChineseName),
			VisaType:             visa,
			Source:               internal.SourceSynthesized,
		})
	}
	return out
}

// EnrichAcceptance fills gaps in the acceptance entries from the applicant
// record with the same acceptance number or passport number. The input is
// not modified.
func EnrichAcceptance(entries []internal.AcceptanceEntry, applicants []internal.ApplicantRecord) []internal.AcceptanceEntry {
	out := make([]internal.AcceptanceEntry, len(entries))
	copy(out, entries)

	for i := range out {
		a := findApplicant(out[i], applicants)
		if a == nil {
			continue
		}
		if a.VisaType != nil && strings.TrimSpace(*a.VisaType) != "" {
			out[i].VisaType = util.StringPtr(*a.VisaType)
		}
		if out[i].Surname == "" {
			out[i].Surname = a.Surname
		}
		if out[i].GivenName == "" {
			out[i].GivenName = a.GivenName
		}
		if out[i].TeamAcceptanceNumber == "" {
			out[i].TeamAcceptanceNumber = a.TeamAcceptanceNumber
		}
		if out[i].ChineseName == "" {
			out[i].ChineseName = util.DerefString(a.ChineseName)
		}
	}
	return out
}

func findApplicant(e internal.AcceptanceEntry, applicants []internal.ApplicantRecord) *internal.ApplicantRecord {
	number := strings.TrimSpace(e.AcceptanceNumber)
	passport := strings.TrimSpace(e.PassportNumber)
	for i := range applicants {
		a := &applicants[i]
		if number != "" && strings.TrimSpace(a.AcceptanceNumber) == number {
			return a
		}
		if passport != "" && strings.TrimSpace(a.PassportNumber) == passport {
			return a
		}
	}
	return nil
}

// ResolveAcceptance returns the primary list enriched from the import when
// it has entries, and the synthesized list otherwise. The boolean reports
// whether the fallback was used.
func ResolveAcceptance(primary []internal.AcceptanceEntry, applicants []internal.ApplicantRecord) ([]internal.AcceptanceEntry, bool, error) {
	if len(primary) > 0 {
		return EnrichAcceptance(primary, applicants), false, nil
	}
	if len(applicants) == 0 {
		return nil, true, ErrNoImportData
	}
	return SynthesizeAcceptance(applicants), true, nil
}
