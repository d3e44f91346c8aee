package pipeline

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"visareview/internal"
	"visareview/internal/util"
)

// MinFuzzyLength is the shortest identifier fragment that may be matched
// by digit run or containment.
const MinFuzzyLength = 5

type MatchResult struct {
	Applicant internal.ApplicantRecord  `json:"applicant"`
	Extracted *internal.ExtractedRecord `json:"extracted"`
	Reason    internal.MatchReason      `json:"reason"`
}

func (r MatchResult) Matched() bool {
	return r.Extracted != nil
}

type Matcher struct {
	index *Index
}

func NewMatcher(extracted []internal.ExtractedRecord) *Matcher {
	return &Matcher{index: BuildIndex(extracted)}
}

// Match pairs an applicant with at most one extracted record. Exact
// identifier equality is tried over the whole collection before any fuzzy
// rule; the fuzzy pass then walks the collection once and takes the first
// candidate that agrees on its longest digit run or contains (or is
// contained in) the applicant identifier.
func (m *Matcher) Match(applicant internal.ApplicantRecord) MatchResult {
	none := MatchResult{Applicant: applicant, Reason: internal.ReasonNone}

	if strings.TrimSpace(applicant.PassportNumber) == "" {
		return none
	}
	query := util.NormalizeIdentifier(applicant.PassportNumber)
	if query == "" {
		return none
	}

	if i, ok := m.index.ByIdentifier[query]; ok {
		return m.result(applicant, i, internal.ReasonExact)
	}

	if len(query) < MinFuzzyLength {
		return none
	}

	queryRun := util.LongestDigitRun(query)
	for i, candidate := range m.index.Normalized {
		if candidate == "" {
			continue
		}
		candRun := m.index.LongestRun[i]
		if queryRun != "" && candRun != "" && queryRun == candRun && len(queryRun) >= MinFuzzyLength {
			return m.result(applicant, i, internal.ReasonNumericRun)
		}
		if contains(query, candidate) {
			return m.result(applicant, i, internal.ReasonContainment)
		}
	}

	return none
}

func (m *Matcher) MatchAll(applicants []internal.ApplicantRecord) []MatchResult {
	out := make([]MatchResult, 0, len(applicants))
	for _, a := range applicants {
		out = append(out, m.Match(a))
	}
	return out
}

// Closest returns the extracted identifier nearest to the applicant's by
// edit distance. Used only as a hint for records that did not match.
func (m *Matcher) Closest(applicant internal.ApplicantRecord) (string, int, bool) {
	query := util.NormalizeIdentifier(applicant.PassportNumber)
	if query == "" {
		return "", 0, false
	}
	best, bestDist := -1, 0
	for i, candidate := range m.index.Normalized {
		if candidate == "" {
			continue
		}
		d := levenshtein.ComputeDistance(query, candidate)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return m.index.Records[best].PassportNumber, bestDist, true
}

func (m *Matcher) result(applicant internal.ApplicantRecord, i int, reason internal.MatchReason) MatchResult {
	rec := m.index.Records[i]
	return MatchResult{Applicant: applicant, Extracted: &rec, Reason: reason}
}

// contains reports whether either identifier contains the other with the
// contained side at least MinFuzzyLength long.
func contains(a, b string) bool {
	if len(b) >= MinFuzzyLength && strings.Contains(a, b) {
		return true
	}
	return len(a) >= MinFuzzyLength && strings.Contains(b, a)
}
