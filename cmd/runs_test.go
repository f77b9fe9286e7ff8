package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID: "run-1",
			Params: model.AnalysisParams{
				Attribute: "pop_age_11_15",
				Threshold: 4000,
			},
			DemandCount: 600,
			SupplyCount: 450,
			Skipped:     []string{"100003", "100017"},
			Status:      model.RunStatusComplete,
			CreatedAt:   created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "pop_age_11_15")
	assert.Contains(t, out, "4000")
	assert.Contains(t, out, "600")
	assert.Contains(t, out, "2")
	assert.Contains(t, out, "2026-03-14T09:30:00Z")
}

func TestWriteScoresTo(t *testing.T) {
	var buf bytes.Buffer
	err := writeScoresTo(&buf, []model.ZoneScore{
		{DemandID: "E05000001", Score: 1.0 / 300.0},
		{DemandID: "E05000002", Score: 0},
	}, 10000)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "DEMAND_ID")
	assert.Contains(t, out, "E05000001")
	assert.Contains(t, out, "33.333333")
	assert.Contains(t, out, "0.000000")
}
