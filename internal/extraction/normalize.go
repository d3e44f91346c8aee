package extraction

import (
	"fmt"
	"strings"

	"visareview/internal"
	"visareview/internal/util"
)

// minPassportLength is the length at which the letter prefix / digit body
// repair is applied.
const minPassportLength = 9

var (
	nameRepair   = strings.NewReplacer("0", "O", "1", "I")
	prefixRepair = strings.NewReplacer("0", "O", "1", "I")
	bodyRepair   = strings.NewReplacer("O", "0", "I", "1", "l", "1")
)

// NormalizeRecord repairs the usual OCR confusions between letters and
// digits. Names are letters only, a passport number is a two-letter prefix
// followed by digits, and sex is M or F.
func NormalizeRecord(r internal.ExtractedRecord) internal.ExtractedRecord {
	r.Surname = strings.ToUpper(nameRepair.Replace(strings.TrimSpace(r.Surname)))
	r.GivenName = strings.ToUpper(nameRepair.Replace(strings.TrimSpace(r.GivenName)))

	pn := strings.TrimSpace(r.PassportNumber)
	if runes := []rune(pn); len(runes) >= minPassportLength {
		prefix := prefixRepair.Replace(strings.ToUpper(string(runes[:2])))
		pn = prefix + bodyRepair.Replace(string(runes[2:]))
	}
	r.PassportNumber = pn

	gender := strings.ToUpper(strings.TrimSpace(r.Gender))
	switch gender {
	case "M", "F":
	case "0", "O":
		gender = "F"
	case "1", "I", "L":
		gender = "M"
	}
	r.Gender = gender

	r.BirthDate = normalizeDate(r.BirthDate)
	r.ExpiryDate = normalizeDate(r.ExpiryDate)
	return r
}

func normalizeDate(v string) string {
	if digits := util.OnlyDigits(v); len(digits) == 8 {
		return digits
	}
	return strings.TrimSpace(v)
}

// ValidateRecord rejects records that are missing a field, carry a date
// that is not YYYYMMDD, or have a sex other than M or F.
func ValidateRecord(r internal.ExtractedRecord) error {
	required := map[string]string{
		"passport_number": r.PassportNumber,
		"surname":         r.Surname,
		"given_name":      r.GivenName,
		"gender":          r.Gender,
		"birth_date":      r.BirthDate,
		"expiry_date":     r.ExpiryDate,
	}
	for _, field := range []string{"passport_number", "surname", "given_name", "gender", "birth_date", "expiry_date"} {
		if strings.TrimSpace(required[field]) == "" {
			return fmt.Errorf("missing field %s", field)
		}
	}
	for field, v := range map[string]string{"birth_date": r.BirthDate, "expiry_date": r.ExpiryDate} {
		if len(v) != 8 || util.OnlyDigits(v) != v {
			return fmt.Errorf("bad date %s=%q", field, v)
		}
	}
	if r.Gender != "M" && r.Gender != "F" {
		return fmt.Errorf("bad gender %q", r.Gender)
	}
	return nil
}
