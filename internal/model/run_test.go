package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusQueued, "queued"},
		{RunStatusLoading, "loading"},
		{RunStatusGridding, "gridding"},
		{RunStatusComputing, "computing"},
		{RunStatusValidating, "validating"},
		{RunStatusWriting, "writing"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestRunResult_JSON(t *testing.T) {
	t.Parallel()

	r := RunResult{
		Cells:     9,
		Variables: []string{"part_jeunes"},
		NoData:    map[string]int{"part_jeunes": 8},
		Phases:    []PhaseResult{{Name: "grid", Status: PhaseStatusComplete, Duration: 12}},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_ms":12`)

	var back RunResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}
