package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"visareview/internal"
	"visareview/internal/util"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

type ImportOptions struct {
	// VisaTypeColumn is the fallback position of the visa type in
	// headerless files. Negative disables the fallback.
	VisaTypeColumn int
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{VisaTypeColumn: DefaultVisaTypeColumn}
}

// ReadApplicants loads the applicant import from a .csv or .xlsx file.
func ReadApplicants(path string, opts ImportOptions) ([]internal.ApplicantRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseApplicants(filepath.Base(path), raw, opts)
}

// ParseApplicants picks the reader by file name.
func ParseApplicants(name string, content []byte, opts ImportOptions) ([]internal.ApplicantRecord, error) {
	rows, err := readTable(name, content)
	if err != nil {
		return nil, err
	}
	return applicantsFromRows(rows, opts), nil
}

func readTable(name string, content []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return readCSVRows(content)
	case ".xlsx", ".xlsm":
		return readXLSXRows(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func readCSVRows(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSXRows(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, nil
}

func applicantsFromRows(rows [][]string, opts ImportOptions) []internal.ApplicantRecord {
	out := []internal.ApplicantRecord{}
	if len(rows) == 0 {
		return out
	}

	layout := DetectLayout(rows[0], opts.VisaTypeColumn)
	if layout.HasHeader {
		rows = rows[1:]
	}

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rec := internal.ApplicantRecord{
			Row:                  len(out),
			Index:                layout.Value(row, ColIndex),
			AcceptanceNumber:     layout.Value(row, ColAcceptanceNumber),
			Valid:                layout.Value(row, ColValid),
			PassportNumber:       layout.Value(row, ColPassportNumber),
			ExpiryDate:           util.PadDate(layout.Value(row, ColExpiryDate)),
			Surname:              layout.Value(row, ColSurname),
			GivenName:            layout.Value(row, ColGivenName),
			Gender:               layout.Value(row, ColGender),
			BirthDate:            util.PadDate(layout.Value(row, ColBirthDate)),
			Nationality:          layout.Value(row, ColNationality),
			PhotoFilename:        layout.Value(row, ColPhotoFilename),
			TeamAcceptanceNumber: layout.Value(row, ColTeamAcceptanceNumber),
			VisaType:             layout.Optional(row, ColVisaType),
			Duration:             layout.Value(row, ColDuration),
			Category:             layout.Value(row, ColCategory),
			Validity:             layout.Value(row, ColValidity),
		}
		if name := layout.Value(row, ColChineseName); name != "" {
			rec.ChineseName = util.StringPtr(name)
		}
		out = append(out, rec)
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if util.CleanCell(c) != "" {
			return false
		}
	}
	return true
}
