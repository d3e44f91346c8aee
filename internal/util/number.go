package util

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var leadingInt = regexp.MustCompile(`^[+-]?[0-9]+`)

// ParseLeadingInt reads the integer at the start of input, ignoring leading
// whitespace and anything after the digits: "0012" is 12, "12a" is 12,
// "a12" fails. Values that do not fit in int64 fail as well.
func ParseLeadingInt(input string) (int64, bool) {
	token := leadingInt.FindString(strings.TrimLeftFunc(input, unicode.IsSpace))
	if token == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// OnlyDigits drops every non-digit rune.
func OnlyDigits(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		if r >= '0' && r <= '9' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func IntPtr(v int) *int {
	return &v
}
