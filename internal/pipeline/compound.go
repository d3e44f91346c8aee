package pipeline

import (
	"strings"

	"visareview/internal"
)

// Team acceptance number layout: agency code, submission date as YYMMDD,
// then a variable-length package sequence.
const (
	CompoundPrefixLength = 9
	agencyCodeLength     = 3
	defaultSequence      = "1"
)

type CompoundItem struct {
	Index                int    `json:"index"`
	TeamAcceptanceNumber string `json:"team_acceptance_number"`
	Prefix               string `json:"prefix"`
	AcceptanceNumber     string `json:"acceptance_number"`
	PassportNumber       string `json:"passport_number"`
	IsInvalid            bool   `json:"isInvalid"`
}

type CompoundParts struct {
	AgencyCode     string `json:"agencyCode"`
	Date           string `json:"date"`
	SubmissionDate string `json:"submissionDate"`
	Sequence       string `json:"sequence"`
}

type CompoundAnalysis struct {
	IsConsistent          bool           `json:"isConsistent"`
	Prefix                string         `json:"prefix"`
	UniquePrefixes        []string       `json:"uniquePrefixes"`
	PrefixCounts          map[string]int `json:"prefixCounts"`
	InconsistentItems     []CompoundItem `json:"inconsistentItems"`
	HasCompoundIdentifier bool           `json:"hasTeamAcceptanceNumber"`
	Parts                 *CompoundParts `json:"parts,omitempty"`
}

// InconsistentIndices lists the entry positions that need review.
func (a CompoundAnalysis) InconsistentIndices() []int {
	out := make([]int, 0, len(a.InconsistentItems))
	for _, item := range a.InconsistentItems {
		out = append(out, item.Index)
	}
	return out
}

// AnalyzeCompound groups entries by the first nine characters of their team
// acceptance number and reports every entry outside the dominant group.
// Identifiers shorter than nine characters are grouped by their full text
// and always reported.
func AnalyzeCompound(entries []internal.AcceptanceEntry) CompoundAnalysis {
	res := CompoundAnalysis{
		IsConsistent:      true,
		UniquePrefixes:    []string{},
		PrefixCounts:      map[string]int{},
		InconsistentItems: []CompoundItem{},
	}

	items := make([]CompoundItem, 0, len(entries))
	for i, e := range entries {
		team := strings.TrimSpace(e.TeamAcceptanceNumber)
		if team == "" {
			continue
		}
		res.HasCompoundIdentifier = true

		item := CompoundItem{
			Index:                i,
			TeamAcceptanceNumber: team,
			AcceptanceNumber:     e.AcceptanceNumber,
			PassportNumber:       e.PassportNumber,
		}
		item.Prefix, item.IsInvalid = splitPrefix(team)
		if _, seen := res.PrefixCounts[item.Prefix]; !seen {
			res.UniquePrefixes = append(res.UniquePrefixes, item.Prefix)
		}
		res.PrefixCounts[item.Prefix]++
		items = append(items, item)
	}

	if len(items) == 0 {
		return res
	}

	res.IsConsistent = len(res.UniquePrefixes) == 1

	maxCount := 0
	for _, p := range res.UniquePrefixes {
		if res.PrefixCounts[p] > maxCount {
			maxCount = res.PrefixCounts[p]
			res.Prefix = p
		}
	}

	for _, item := range items {
		if item.Prefix != res.Prefix || item.IsInvalid {
			res.InconsistentItems = append(res.InconsistentItems, item)
		}
	}

	for _, item := range items {
		if item.Prefix == res.Prefix && !item.IsInvalid {
			parts := ParseCompoundIdentifier(item.TeamAcceptanceNumber)
			res.Parts = &parts
			break
		}
	}

	return res
}

// ParseCompoundIdentifier splits a team acceptance number into its fixed
// width fields. The year is read as 20YY.
func ParseCompoundIdentifier(id string) CompoundParts {
	r := []rune(strings.TrimSpace(id))
	parts := CompoundParts{Sequence: defaultSequence}
	if len(r) < CompoundPrefixLength {
		return parts
	}
	parts.AgencyCode = string(r[:agencyCodeLength])
	date := r[agencyCodeLength:CompoundPrefixLength]
	parts.Date = string(date)
	parts.SubmissionDate = "20" + string(date[:2]) + "-" + string(date[2:4]) + "-" + string(date[4:6])
	if len(r) > CompoundPrefixLength {
		parts.Sequence = string(r[CompoundPrefixLength:])
	}
	return parts
}

func splitPrefix(team string) (prefix string, invalid bool) {
	r := []rune(team)
	if len(r) < CompoundPrefixLength {
		return team, true
	}
	return string(r[:CompoundPrefixLength]), false
}
