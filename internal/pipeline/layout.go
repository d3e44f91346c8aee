package pipeline

import (
	"visareview/internal/util"
)

// Applicant fields addressable by column.
const (
	ColIndex                = "index"
	ColValid                = "valid"
	ColPassportNumber       = "passport_number"
	ColExpiryDate           = "expiry_date"
	ColSurname              = "surname"
	ColGivenName            = "given_name"
	ColGender               = "gender"
	ColBirthDate            = "birth_date"
	ColNationality          = "nationality"
	ColPhotoFilename        = "photo_filename"
	ColTeamAcceptanceNumber = "team_acceptance_number"
	ColAcceptanceNumber     = "acceptance_number"
	ColVisaType             = "visa_type"
	ColDuration             = "duration"
	ColCategory             = "category"
	ColValidity             = "validity"
	ColChineseName          = "chinese_name"
)

// DefaultVisaTypeColumn is where headerless exports keep the visa type
// (the 17th column).
const DefaultVisaTypeColumn = 16

// legacyPositions is the column order of headerless exports.
var legacyPositions = map[string]int{
	ColIndex:                0,
	ColValid:                1,
	ColPassportNumber:       2,
	ColExpiryDate:           3,
	ColSurname:              4,
	ColGivenName:            5,
	ColGender:               6,
	ColBirthDate:            7,
	ColNationality:          8,
	ColPhotoFilename:        13,
	ColTeamAcceptanceNumber: 14,
	ColDuration:             17,
	ColCategory:             18,
	ColValidity:             19,
	ColChineseName:          22,
}

var headerAliases = map[string][]string{
	ColIndex:                {"index", "no", "no.", "序号", "编号"},
	ColValid:                {"valid", "有效"},
	ColPassportNumber:       {"passport number", "passport no", "passport", "护照号码", "护照号"},
	ColExpiryDate:           {"expiry date", "expiry", "date of expiry", "护照到期日", "有效期至"},
	ColSurname:              {"surname", "last name", "拼音姓", "姓"},
	ColGivenName:            {"given name", "first name", "拼音名", "名"},
	ColGender:               {"gender", "sex", "性别"},
	ColBirthDate:            {"birth date", "date of birth", "dob", "出生日期"},
	ColNationality:          {"nationality", "国籍"},
	ColPhotoFilename:        {"photo filename", "photo", "照片"},
	ColTeamAcceptanceNumber: {"team acceptance number", "batch number", "团队受理号", "批次号"},
	ColAcceptanceNumber:     {"acceptance number", "受理号"},
	ColVisaType:             {"visa type", "type", "签证类型"},
	ColDuration:             {"duration", "停留期"},
	ColCategory:             {"category", "类别"},
	ColValidity:             {"validity", "有效期"},
	ColChineseName:          {"chinese name", "中文姓名", "姓名"},
}

var aliasToField = func() map[string]string {
	out := map[string]string{}
	for field, aliases := range headerAliases {
		for _, a := range aliases {
			out[util.NormalizeHeader(a)] = field
		}
	}
	return out
}()

// ColumnLayout maps applicant fields to column positions. Fields missing
// from the layout read as absent.
type ColumnLayout struct {
	Columns   map[string]int
	HasHeader bool
}

// LegacyLayout is the positional layout of headerless exports with the
// visa type read from visaTypeColumn (negative disables it).
func LegacyLayout(visaTypeColumn int) ColumnLayout {
	cols := make(map[string]int, len(legacyPositions)+1)
	for k, v := range legacyPositions {
		cols[k] = v
	}
	if visaTypeColumn >= 0 {
		cols[ColVisaType] = visaTypeColumn
	}
	return ColumnLayout{Columns: cols}
}

// DetectLayout treats the first row as a header when at least two of its
// cells name known fields; otherwise the legacy positions apply.
func DetectLayout(firstRow []string, visaTypeColumn int) ColumnLayout {
	cols := headerColumns(firstRow)
	if len(cols) < 2 {
		return LegacyLayout(visaTypeColumn)
	}
	return ColumnLayout{Columns: cols, HasHeader: true}
}

func headerColumns(row []string) map[string]int {
	cols := map[string]int{}
	for i, cell := range row {
		field, ok := aliasToField[util.NormalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, dup := cols[field]; !dup {
			cols[field] = i
		}
	}
	return cols
}

func (l ColumnLayout) Has(field string) bool {
	_, ok := l.Columns[field]
	return ok
}

// Get returns the cleaned cell of field and whether the row has that column.
func (l ColumnLayout) Get(row []string, field string) (string, bool) {
	idx, ok := l.Columns[field]
	if !ok || idx < 0 || idx >= len(row) {
		return "", false
	}
	return util.CleanCell(row[idx]), true
}

func (l ColumnLayout) Value(row []string, field string) string {
	v, _ := l.Get(row, field)
	return v
}

func (l ColumnLayout) Optional(row []string, field string) *string {
	v, ok := l.Get(row, field)
	if !ok {
		return nil
	}
	return &v
}
