package pipeline

import (
	"fmt"

	"visareview/internal"
	"visareview/internal/util"
)

const (
	MessageNoExtraction = "no passport data found"

	// suggestionMaxDistance bounds the edit distance of a closest-candidate hint.
	suggestionMaxDistance = 3
)

type Reconciliation struct {
	Pairs   []MatchResult          `json:"pairs"`
	Errors  []internal.ErrorRecord `json:"errors"`
	Matched int                    `json:"matched"`
}

// Reconcile matches every applicant against the extraction collection and
// lists the applicants that need a second look. An empty collection is not
// an error: every applicant is then reported as having no passport data.
func Reconcile(applicants []internal.ApplicantRecord, extracted []internal.ExtractedRecord) Reconciliation {
	matcher := NewMatcher(extracted)
	out := Reconciliation{
		Pairs:  make([]MatchResult, 0, len(applicants)),
		Errors: []internal.ErrorRecord{},
	}

	for i, applicant := range applicants {
		pair := matcher.Match(applicant)
		out.Pairs = append(out.Pairs, pair)

		if !pair.Matched() {
			rec := internal.ErrorRecord{
				Index:          i,
				PassportNumber: applicant.PassportNumber,
				Errors:         []string{MessageNoExtraction},
			}
			if candidate, dist, ok := matcher.Closest(applicant); ok && dist <= suggestionMaxDistance {
				rec.Suggestion = util.StringPtr(fmt.Sprintf("%s (distance %d)", candidate, dist))
			}
			out.Errors = append(out.Errors, rec)
			continue
		}

		out.Matched++
		cmp := CompareFields(applicant, *pair.Extracted)
		if cmp.AllMatch() {
			continue
		}
		out.Errors = append(out.Errors, internal.ErrorRecord{
			Index:          i,
			PassportNumber: applicant.PassportNumber,
			Errors:         cmp.Mismatches(),
			PageNumber:     util.IntPtr(pair.Extracted.PageNumber),
		})
	}

	return out
}

// ErrorIndices lists the applicant positions that have an error record.
func (r Reconciliation) ErrorIndices() []int {
	out := make([]int, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Index)
	}
	return out
}
