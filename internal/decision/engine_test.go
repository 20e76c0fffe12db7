package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/pkg/models"
)

var fixedNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(Config{Now: func() time.Time { return fixedNow }})
}

func analysis(breakdowns int, downtime, print float64) models.MachineEfficiencyAnalysis {
	total := print + downtime
	eff := 100.0
	if total > 0 {
		eff = print / total * 100
	}
	return models.MachineEfficiencyAnalysis{
		MachineID:                7,
		MachineName:              "Press 7",
		TotalPrintTimeMinutes:    print,
		TotalDowntimeMinutes:     downtime,
		ReducibleDowntimeMinutes: downtime,
		BreakdownCount:           breakdowns,
		RecordCount:              12,
		AffectedPublications:     []string{"Daily"},
		EfficiencyPercentage:     eff,
	}
}

func TestDecide_Rules(t *testing.T) {
	tests := []struct {
		name         string
		input        models.MachineEfficiencyAnalysis
		wantPriority models.Priority
		wantAction   string
		wantReason   string
		wantDate     string
	}{
		{
			name:         "critical wins over low efficiency",
			input:        analysis(6, 150, 100),
			wantPriority: models.PriorityUrgent,
			wantAction:   "CRITICAL MAINTENANCE - 6 breakdowns, 150 min downtime",
			wantReason:   "Machine efficiency dropped to 40.0%. Immediate inspection needed.",
			wantDate:     "2024-03-11",
		},
		{
			name:         "urgent",
			input:        analysis(4, 90, 910),
			wantPriority: models.PriorityUrgent,
			wantAction:   "Schedule urgent maintenance - 4 breakdowns detected",
			wantReason:   "Total downtime: 90 minutes. Could improve efficiency by 9.0%",
			wantDate:     "2024-03-11",
		},
		{
			name:         "many breakdowns but little downtime",
			input:        analysis(6, 30, 970),
			wantPriority: models.PriorityNormal,
			wantAction:   "Plan preventive maintenance - 6 recent breakdowns",
			wantReason:   "Pattern detected. Current efficiency: 97.0%",
			wantDate:     "2024-03-13",
		},
		{
			name:         "low efficiency",
			input:        analysis(1, 200, 800),
			wantPriority: models.PriorityNormal,
			wantAction:   "Inspect and optimize machine settings",
			wantReason:   "Downtime: 200 min vs print time: 800 min",
			wantDate:     "2024-03-13",
		},
	}

	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := e.Decide(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.wantPriority, rec.Priority)
			assert.Equal(t, tt.wantAction, rec.Recommendation)
			assert.Equal(t, tt.wantReason, rec.Reason)
			assert.Equal(t, tt.wantDate, rec.SuggestedDate)
		})
	}
}

func TestDecide_NoAction(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name  string
		input models.MachineEfficiencyAnalysis
	}{
		{"healthy machine", analysis(1, 10, 990)},
		{"zero breakdowns with low efficiency", analysis(0, 0, 0)},
		{"no activity", models.MachineEfficiencyAnalysis{MachineID: 1, BreakdownCount: 3}},
		{"boundary values do not trigger", analysis(2, 60, 940)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := e.Decide(tt.input)
			assert.False(t, ok)
			assert.Nil(t, rec)
		})
	}
}

func TestDecide_Metrics(t *testing.T) {
	in := analysis(6, 150.9, 100.4)

	rec, ok := newTestEngine().Decide(in)
	require.True(t, ok)

	assert.Equal(t, 100, rec.Metrics.TotalPrintTimeMinutes)
	assert.Equal(t, 150, rec.Metrics.TotalDowntimeMinutes)
	assert.Equal(t, 150, rec.Metrics.ReducibleDowntimeMinutes)
	assert.Equal(t, 6, rec.Metrics.BreakdownEvents)
	assert.Equal(t, 12, rec.Metrics.ProductionRuns)
	assert.Equal(t, 40.0, rec.Metrics.EfficiencyPercentage)
	assert.Equal(t, []string{"Daily"}, rec.Metrics.AffectedPublications)
}

func TestEligible(t *testing.T) {
	assert.False(t, Eligible(models.MachineEfficiencyAnalysis{BreakdownCount: 2}))
	assert.False(t, Eligible(models.MachineEfficiencyAnalysis{TotalPrintTimeMinutes: 10}))
	assert.True(t, Eligible(models.MachineEfficiencyAnalysis{TotalDowntimeMinutes: 5, BreakdownCount: 1}))
}
