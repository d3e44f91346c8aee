package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visareview/internal"
)

func entries(numbers ...string) []internal.AcceptanceEntry {
	out := make([]internal.AcceptanceEntry, len(numbers))
	for i, n := range numbers {
		out[i] = internal.AcceptanceEntry{AcceptanceNumber: n}
	}
	return out
}

func TestSequenceSingleGap(t *testing.T) {
	res := AnalyzeSequence(entries("1", "2", "3", "5", "6"))

	require.True(t, res.HasDiscontinuity)
	require.Len(t, res.Discontinuities, 1)
	d := res.Discontinuities[0]
	assert.Equal(t, int64(3), d.From)
	assert.Equal(t, int64(5), d.To)
	assert.Equal(t, int64(2), d.Gap)
	assert.Equal(t, 2, d.FromIndex)
	assert.Equal(t, 3, d.ToIndex)
	assert.Equal(t, "3-4", d.Span)

	assert.Equal(t, PositionDiscontinuityBefore, res.Items[2].Position)
	assert.Equal(t, PositionDiscontinuityAfter, res.Items[3].Position)
	assert.Equal(t, PositionFirst, res.Items[0].Position)
	assert.Equal(t, PositionLast, res.Items[4].Position)
	assert.False(t, res.Items[1].IsHighlighted)
	assert.Equal(t, []int{0, 2, 3, 4}, res.HighlightedIndices())
}

func TestSequenceEmptyAndInvalid(t *testing.T) {
	res := AnalyzeSequence(entries("1", "", "3", "abc", "5"))

	assert.True(t, res.HasEmptyAcceptanceNumbers)
	require.Len(t, res.EmptyItems, 2)

	assert.Equal(t, 1, res.EmptyItems[0].Index)
	assert.Equal(t, 2, res.EmptyItems[0].Position)
	assert.Equal(t, PositionEmpty, res.EmptyItems[0].Kind)
	assert.Nil(t, res.EmptyItems[0].Value)
	assert.Equal(t, "unknown", res.EmptyItems[0].PassportNumber)

	assert.Equal(t, 3, res.EmptyItems[1].Index)
	assert.Equal(t, PositionInvalidFormat, res.EmptyItems[1].Kind)
	require.NotNil(t, res.EmptyItems[1].Value)
	assert.Equal(t, "abc", *res.EmptyItems[1].Value)
}

func TestSequencePlaceholdersAreEmpty(t *testing.T) {
	res := AnalyzeSequence(entries("7", EmptyPlaceholder, "NaN", " ", "8"))
	assert.Len(t, res.EmptyItems, 3)
	for _, item := range res.EmptyItems {
		assert.Equal(t, PositionEmpty, item.Kind)
	}
	assert.False(t, res.HasDiscontinuity)
}

func TestSequenceEdgesAlwaysHighlighted(t *testing.T) {
	lists := [][]string{
		{"9"},
		{"1", "2"},
		{"", ""},
		{"abc", "1", "2", "xyz"},
		{"4", "5", "6", "7"},
	}
	for _, l := range lists {
		res := AnalyzeSequence(entries(l...))
		assert.True(t, res.Items[0].IsHighlighted, "first of %v", l)
		assert.True(t, res.Items[len(l)-1].IsHighlighted, "last of %v", l)
	}
}

func TestSequenceEdgeKeepsSpecificLabel(t *testing.T) {
	res := AnalyzeSequence(entries("", "2", "3", "x"))
	assert.Equal(t, PositionEmpty, res.Items[0].Position)
	assert.Equal(t, PositionInvalidFormat, res.Items[3].Position)
	assert.False(t, res.Items[1].IsHighlighted)

	single := AnalyzeSequence(entries("5"))
	assert.Equal(t, PositionFirst, single.Items[0].Position)
}

func TestSequenceDuplicateIsGapZero(t *testing.T) {
	res := AnalyzeSequence(entries("1", "2", "2", "3"))
	require.Len(t, res.Discontinuities, 1)
	assert.Equal(t, int64(0), res.Discontinuities[0].Gap)
	assert.Equal(t, int64(2), res.Discontinuities[0].From)
}

func TestSequenceLeadingIntegerParse(t *testing.T) {
	res := AnalyzeSequence(entries("10", "11abc", " 12"))
	assert.False(t, res.HasDiscontinuity)
	assert.Empty(t, res.EmptyItems)
}

func TestSequenceOrderIndependent(t *testing.T) {
	res := AnalyzeSequence(entries("3", "1", "2"))
	assert.False(t, res.HasDiscontinuity)
	assert.Equal(t, []int{0, 2}, res.HighlightedIndices())
}

func TestSequenceEmptyInput(t *testing.T) {
	res := AnalyzeSequence(nil)
	assert.Empty(t, res.Items)
	assert.False(t, res.HasDiscontinuity)
	assert.Empty(t, res.HighlightedIndices())
}

func TestSequenceDoesNotMutateInput(t *testing.T) {
	in := entries("1", "", "4")
	before := append([]internal.AcceptanceEntry(nil), in...)
	_ = AnalyzeSequence(in)
	assert.Equal(t, before, in)
}
