package pipeline

import (
	"strings"

	"visareview/internal"
)

type VisaClass string

const (
	VisaThreeMonth VisaClass = "3M"
	VisaFiveYear   VisaClass = "5M"
	VisaOther      VisaClass = "other"
	VisaEmpty      VisaClass = "empty"
)

var (
	threeMonthValues = map[string]struct{}{
		"3m": {}, "3 m": {}, "3个月": {}, "3 months": {}, "3months": {}, "three months": {},
		"90天": {}, "90 days": {}, "90days": {}, "c": {}, "c类": {}, "c 类": {},
		"category c": {}, "short stay": {}, "03y": {},
	}
	fiveYearValues = map[string]struct{}{
		"5m": {}, "5 m": {}, "5年": {}, "5 years": {}, "5years": {}, "five years": {},
		"multiple": {}, "multiple entry": {}, "d": {}, "d类": {}, "d 类": {},
		"category d": {}, "long stay": {}, "05y": {},
	}
)

func IsThreeMonthVisa(value string) bool {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return false
	}
	if _, ok := threeMonthValues[s]; ok {
		return true
	}
	return strings.Contains(s, "3m")
}

func IsFiveYearVisa(value string) bool {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return false
	}
	if _, ok := fiveYearValues[s]; ok {
		return true
	}
	return strings.Contains(s, "5m")
}

// ClassifyVisa maps a free-text visa type to a class. An absent value and a
// blank one are both empty.
func ClassifyVisa(v *string) VisaClass {
	if v == nil || strings.TrimSpace(*v) == "" {
		return VisaEmpty
	}
	switch {
	case IsThreeMonthVisa(*v):
		return VisaThreeMonth
	case IsFiveYearVisa(*v):
		return VisaFiveYear
	default:
		return VisaOther
	}
}

type VisaDistribution struct {
	ThreeMonth int            `json:"threeMonth"`
	FiveYear   int            `json:"fiveYear"`
	Other      int            `json:"other"`
	Empty      int            `json:"empty"`
	Values     map[string]int `json:"values"`
}

func (d VisaDistribution) Total() int {
	return d.ThreeMonth + d.FiveYear + d.Other
}

func AnalyzeVisaTypes(records []internal.ApplicantRecord) VisaDistribution {
	d := VisaDistribution{Values: map[string]int{}}
	for _, r := range records {
		class := ClassifyVisa(r.VisaType)
		if class != VisaEmpty {
			d.Values[strings.ToLower(strings.TrimSpace(*r.VisaType))]++
		}
		switch class {
		case VisaThreeMonth:
			d.ThreeMonth++
		case VisaFiveYear:
			d.FiveYear++
		case VisaOther:
			d.Other++
		default:
			d.Empty++
		}
	}
	return d
}
