package pipeline

import "visareview/internal"

const (
	FieldPassportNumber = "passport_number"
	FieldName           = "name"
	FieldGender         = "gender"
	FieldBirthDate      = "birth_date"
	FieldExpiryDate     = "expiry_date"
)

var comparedFields = []string{FieldPassportNumber, FieldName, FieldGender, FieldBirthDate, FieldExpiryDate}

var mismatchMessages = map[string]string{
	FieldPassportNumber: "passport number mismatch",
	FieldName:           "name mismatch",
	FieldGender:         "gender mismatch",
	FieldBirthDate:      "birth date mismatch",
	FieldExpiryDate:     "expiry date mismatch",
}

type FieldResult struct {
	Field     string `json:"field"`
	Applicant string `json:"applicant"`
	Extracted string `json:"extracted"`
	Match     bool   `json:"match"`
}

type FieldComparison struct {
	Fields []FieldResult `json:"fields"`
}

// CompareFields checks the matched pair field by field. Values are compared
// verbatim: a formatting difference is a discrepancy for the reviewer, not
// something to smooth over.
func CompareFields(applicant internal.ApplicantRecord, extracted internal.ExtractedRecord) FieldComparison {
	values := map[string][2]string{
		FieldPassportNumber: {applicant.PassportNumber, extracted.PassportNumber},
		FieldName:           {applicant.FullName(), extracted.FullName()},
		FieldGender:         {applicant.Gender, extracted.Gender},
		FieldBirthDate:      {applicant.BirthDate, extracted.BirthDate},
		FieldExpiryDate:     {applicant.ExpiryDate, extracted.ExpiryDate},
	}

	out := FieldComparison{Fields: make([]FieldResult, 0, len(comparedFields))}
	for _, field := range comparedFields {
		v := values[field]
		out.Fields = append(out.Fields, FieldResult{Field: field, Applicant: v[0], Extracted: v[1], Match: v[0] == v[1]})
	}
	return out
}

func (c FieldComparison) Matches() map[string]bool {
	out := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		out[f.Field] = f.Match
	}
	return out
}

func (c FieldComparison) AllMatch() bool {
	for _, f := range c.Fields {
		if !f.Match {
			return false
		}
	}
	return true
}

// Mismatches returns one message per differing field, in field order.
func (c FieldComparison) Mismatches() []string {
	out := []string{}
	for _, f := range c.Fields {
		if !f.Match {
			out = append(out, mismatchMessages[f.Field])
		}
	}
	return out
}
