package extraction

import (
	"testing"

	"visareview/internal"
)

func TestNormalizeRecord(t *testing.T) {
	cases := []struct {
		name string
		in   internal.ExtractedRecord
		want internal.ExtractedRecord
	}{
		{
			name: "letter digit confusion",
			in:   internal.ExtractedRecord{PassportNumber: "E0I2345678", Surname: "L1", GivenName: "b0", Gender: "0", BirthDate: "1990.01.05", ExpiryDate: "2030/01/01"},
			want: internal.ExtractedRecord{PassportNumber: "EO12345678", Surname: "LI", GivenName: "BO", Gender: "F", BirthDate: "19900105", ExpiryDate: "20300101"},
		},
		{
			name: "short number untouched",
			in:   internal.ExtractedRecord{PassportNumber: "E0I23", Gender: "m", BirthDate: "1990-1-5"},
			want: internal.ExtractedRecord{PassportNumber: "E0I23", Gender: "M", BirthDate: "1990-1-5"},
		},
		{
			name: "wide prefix rune",
			in:   internal.ExtractedRecord{PassportNumber: "Ｅ0I2345678"},
			want: internal.ExtractedRecord{PassportNumber: "ＥO12345678"},
		},
		{
			name: "body letters",
			in:   internal.ExtractedRecord{PassportNumber: "EA1234l67O", Gender: "L"},
			want: internal.ExtractedRecord{PassportNumber: "EA12341670", Gender: "M"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeRecord(tc.in)
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestValidateRecord(t *testing.T) {
	ok := internal.ExtractedRecord{PassportNumber: "E12345678", Surname: "LI", GivenName: "MING", Gender: "M", BirthDate: "19900105", ExpiryDate: "20300101"}
	if err := ValidateRecord(ok); err != nil {
		t.Fatal(err)
	}

	missing := ok
	missing.GivenName = ""
	if err := ValidateRecord(missing); err == nil {
		t.Fatal("expected missing field error")
	}

	badDate := ok
	badDate.BirthDate = "1990015"
	if err := ValidateRecord(badDate); err == nil {
		t.Fatal("expected date error")
	}

	badGender := ok
	badGender.Gender = "X"
	if err := ValidateRecord(badGender); err == nil {
		t.Fatal("expected gender error")
	}
}
