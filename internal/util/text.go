package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reDigitRun = regexp.MustCompile(`[0-9]+`)
	reSpaces   = regexp.MustCompile(`\s+`)
)

// NormalizeIdentifier canonicalizes a passport-style identifier for
// comparison. Full-width forms are folded first so that "Ｅ１２３" and "E123"
// compare equal; everything outside [A-Z0-9] is then dropped.
func NormalizeIdentifier(input string) string {
	s := norm.NFKC.String(input)
	s = strings.ToUpper(strings.TrimSpace(s))
	out := strings.Builder{}
	out.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// DigitRuns returns every maximal run of ASCII digits in input, in order.
func DigitRuns(input string) []string {
	return reDigitRun.FindAllString(input, -1)
}

// LongestDigitRun returns the longest digit run. On ties the later run wins.
func LongestDigitRun(input string) string {
	longest := ""
	for _, run := range DigitRuns(input) {
		if len(run) >= len(longest) {
			longest = run
		}
	}
	return longest
}

// NormalizeHeader folds a column header for name lookup.
func NormalizeHeader(input string) string {
	s := norm.NFKC.String(input)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return reSpaces.ReplaceAllString(s, " ")
}

// CleanCell trims a spreadsheet cell and clears the "nan" marker that
// pandas-produced exports leave in empty cells.
func CleanCell(input string) string {
	s := strings.TrimSpace(input)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

// PadDate left-pads a numeric date to YYYYMMDD. Spreadsheet tools drop the
// leading zero of dates stored as numbers.
func PadDate(input string) string {
	s := CleanCell(input)
	if s == "" {
		return ""
	}
	s = strings.TrimSuffix(s, ".0")
	if len(s) >= 8 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.Repeat("0", 8-len(s)) + s
}

// FormatDate renders YYYYMMDD as YYYY/MM/DD and returns anything else as is.
func FormatDate(input string) string {
	if len(input) != 8 {
		return input
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return input
		}
	}
	return input[:4] + "/" + input[4:6] + "/" + input[6:]
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func StringPtr(v string) *string {
	return &v
}

func DerefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
