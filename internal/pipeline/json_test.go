package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysesSurviveJSON(t *testing.T) {
	in := reviewEntries()
	in = append(in, entries("abc", "9007199254740993")...)

	seq := AnalyzeSequence(in)
	data, err := json.Marshal(seq)
	require.NoError(t, err)
	var seqBack SequenceAnalysis
	require.NoError(t, json.Unmarshal(data, &seqBack))
	assert.Equal(t, seq, seqBack)

	compound := AnalyzeCompound(teams("ABC2501011", "ABC2501012", "XYZ2501011", "AB1"))
	data, err = json.Marshal(compound)
	require.NoError(t, err)
	var compoundBack CompoundAnalysis
	require.NoError(t, json.Unmarshal(data, &compoundBack))
	assert.Equal(t, compound, compoundBack)
}
