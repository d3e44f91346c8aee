package util

import "testing"

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: " e-12345678 ", want: "E12345678"},
		{input: "Ｅ１２３４５", want: "E12345"},
		{input: "ab 12/34.56", want: "AB123456"},
		{input: "", want: ""},
		{input: "护照", want: ""},
	}
	for _, tc := range cases {
		got := NormalizeIdentifier(tc.input)
		if got != tc.want {
			t.Fatalf("NormalizeIdentifier(%q)=%q want %q", tc.input, got, tc.want)
		}
		if again := NormalizeIdentifier(got); again != got {
			t.Fatalf("not idempotent: %q -> %q", got, again)
		}
	}
}

func TestLongestDigitRun(t *testing.T) {
	if got := LongestDigitRun("P1234567"); got != "1234567" {
		t.Fatalf("got %q", got)
	}
	if got := LongestDigitRun("A12B34"); got != "34" {
		t.Fatalf("tie should pick later run, got %q", got)
	}
	if got := LongestDigitRun("ABC"); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestPadDateAndFormat(t *testing.T) {
	if got := PadDate("1012000"); got != "01012000" {
		t.Fatalf("got %q", got)
	}
	if got := PadDate("nan"); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := PadDate("19900105.0"); got != "19900105" {
		t.Fatalf("got %q", got)
	}
	if got := FormatDate("19900105"); got != "1990/01/05" {
		t.Fatalf("got %q", got)
	}
	if got := FormatDate("1990-1-5"); got != "1990-1-5" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeHeader(t *testing.T) {
	if got := NormalizeHeader("  Visa_Type "); got != "visa type" {
		t.Fatalf("got %q", got)
	}
}
