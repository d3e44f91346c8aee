package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visareview/internal"
	"visareview/internal/pipeline"
)

func sampleReport() pipeline.Report {
	entries := []internal.AcceptanceEntry{
		{AcceptanceNumber: "10", TeamAcceptanceNumber: "ABC2401010001", PassportNumber: "E1"},
		{AcceptanceNumber: "", TeamAcceptanceNumber: "ABC2401010001", PassportNumber: "E2"},
		{AcceptanceNumber: "13", TeamAcceptanceNumber: "XYZ2401010001", PassportNumber: "E3"},
	}
	seq := pipeline.AnalyzeSequence(entries)
	compound := pipeline.AnalyzeCompound(entries)
	applicants := []internal.ApplicantRecord{{PassportNumber: "E1"}, {PassportNumber: "E2"}, {PassportNumber: "E3"}}
	return pipeline.Report{
		Applicants:     applicants,
		Reconciliation: pipeline.Reconcile(applicants, nil),
		Sequence:       seq,
		Highlights:     pipeline.Highlights(seq, compound),
		Compound:       compound,
		Visa:           pipeline.AnalyzeVisaTypes(applicants),
		UsedFallback:   true,
	}
}

func TestFormatText(t *testing.T) {
	color.NoColor = true
	out := NewFormatter().Format(sampleReport())

	assert.Contains(t, out, "Acceptance numbers (3)")
	assert.Contains(t, out, "numbers taken from the import index column")
	assert.Contains(t, out, "break 10 -> 13 (gap 3, rows 1-3)")
	assert.Contains(t, out, "empty row 2")
	assert.Contains(t, out, "must review: 1:discontinuity 2:empty 3:compound_mismatch")
	assert.Contains(t, out, "inconsistent prefixes: ABC240101, XYZ240101")
	assert.Contains(t, out, "Passport check (0/3 matched)")
	assert.Contains(t, out, "row 1 E1: "+pipeline.MessageNoExtraction)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["usedFallback"])
	assert.Contains(t, decoded, "highlights")
}
