package recommendation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/pkg/models"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func str(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     *time.Time
		end       *time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "defaults to trailing window",
			wantStart: now.AddDate(0, 0, -30),
			wantEnd:   now,
		},
		{
			name:      "end date is inclusive",
			start:     date(2024, 3, 1),
			end:       date(2024, 3, 5),
			wantStart: *date(2024, 3, 1),
			wantEnd:   *date(2024, 3, 6),
		},
		{
			name:      "start only runs to now",
			start:     date(2024, 3, 1),
			wantStart: *date(2024, 3, 1),
			wantEnd:   now,
		},
		{
			name:      "end only looks back",
			end:       date(2024, 2, 29),
			wantStart: *date(2024, 1, 31),
			wantEnd:   *date(2024, 3, 1),
		},
		{
			name:      "single day",
			start:     date(2024, 3, 1),
			end:       date(2024, 3, 1),
			wantStart: *date(2024, 3, 1),
			wantEnd:   *date(2024, 3, 2),
		},
		{
			name:    "start after end",
			start:   date(2024, 3, 5),
			end:     date(2024, 3, 1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ResolveWindow(tt.start, tt.end, now, 30)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(w.Start), "start %s", w.Start)
			assert.True(t, tt.wantEnd.Equal(w.End), "end %s", w.End)
		})
	}
}

func production(id, machineID int64, daysAgo int, pub string, start, end string) models.ProductionEvent {
	return models.ProductionEvent{
		ID:              id,
		MachineID:       machineID,
		PublicationID:   sql.NullInt64{Int64: id % 2, Valid: true},
		PublicationName: str(pub),
		RecordDate:      now.AddDate(0, 0, -daysAgo),
		PageStartTime:   str(start),
		PageEndTime:     str(end),
		Location:        str("North"),
	}
}

func linkedDowntime(id, machineID, recordID int64, duration string) models.DowntimeEvent {
	return models.DowntimeEvent{
		ID:                       id,
		MachineID:                machineID,
		DurationText:             str(duration),
		RecordDate:               now,
		LinkedProductionRecordID: sql.NullInt64{Int64: recordID, Valid: true},
	}
}

func newService(src datasource.Source, linkage string) *Service {
	return New(src, events.NewPublisher(events.NewEventBus(10)), metrics.New(), Config{
		Linkage: linkage,
		Now:     func() time.Time { return now },
	})
}

// seed builds three machines: A is critical, B has no downtime, C shows a
// breakdown pattern.
func seed() *datasource.MemorySource {
	src := datasource.NewMemorySource()
	src.SetRecordLinkage(true)
	src.AddMachine(models.Machine{ID: 1, Name: "Press A"})
	src.AddMachine(models.Machine{ID: 2, Name: "Press B"})
	src.AddMachine(models.Machine{ID: 3, Name: ""})

	src.AddProduction(
		production(10, 1, 3, "Daily", "06:00:00", "08:00:00"),
		production(11, 1, 2, "Weekly", "06:00:00", "07:00:00"),
		production(12, 1, 1, "Daily", "23:00:00", "01:00:00"),
		production(20, 2, 1, "Daily", "06:00:00", "10:00:00"),
		production(30, 3, 1, "Sunday", "06:00:00", "16:00:00"),
	)

	for i := int64(0); i < 6; i++ {
		src.AddLinkedDowntime(linkedDowntime(100+i, 1, 10+i%3, "00:30:00"))
	}
	src.AddLinkedDowntime(
		linkedDowntime(200, 3, 30, "00:05:00"),
		linkedDowntime(201, 3, 30, "00:05:00"),
		linkedDowntime(202, 3, 30, "00:05:00"),
		linkedDowntime(203, 3, 30, "bogus"),
	)
	return src
}

func TestRecommend_RecordLinkage(t *testing.T) {
	svc := newService(seed(), LinkageAuto)

	result, err := svc.Recommend(context.Background(), models.RecommendationFilter{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.StatusRealData, result.Status)
	assert.Equal(t, models.AnalysisTypeDowntimeImpact, result.AnalysisType)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, 1, result.TotalUrgent)
	assert.Equal(t, 1, result.TotalNormal)

	// Machines are ordered by name; the unnamed machine sorts first.
	normal := result.Recommendations[0]
	assert.Equal(t, int64(3), normal.MachineID)
	assert.Equal(t, "Machine 3", normal.MachineName)
	assert.Equal(t, models.PriorityNormal, normal.Priority)
	assert.Equal(t, "Plan preventive maintenance - 3 recent breakdowns", normal.Recommendation)
	assert.Equal(t, "2024-03-13", normal.SuggestedDate)

	urgent := result.Recommendations[1]
	assert.Equal(t, int64(1), urgent.MachineID)
	assert.Equal(t, models.PriorityUrgent, urgent.Priority)
	assert.Equal(t, "CRITICAL MAINTENANCE - 6 breakdowns, 180 min downtime", urgent.Recommendation)
	assert.Equal(t, "2024-03-11", urgent.SuggestedDate)
	assert.Equal(t, 300, urgent.Metrics.TotalPrintTimeMinutes)
	assert.Equal(t, 180, urgent.Metrics.TotalDowntimeMinutes)
	assert.Equal(t, 180, urgent.Metrics.ReducibleDowntimeMinutes)
	assert.Equal(t, 6, urgent.Metrics.BreakdownEvents)
	assert.Equal(t, 3, urgent.Metrics.ProductionRuns)
	assert.Equal(t, 62.5, urgent.Metrics.EfficiencyPercentage)
	assert.Equal(t, []string{"Daily", "Weekly"}, urgent.Metrics.AffectedPublications)
}

func TestRecommend_DayMatching(t *testing.T) {
	src := datasource.NewMemorySource()
	src.AddMachine(models.Machine{ID: 1, Name: "Press A"})
	src.AddProduction(
		production(10, 1, 2, "Daily", "06:00:00", "07:00:00"),
		production(11, 1, 1, "Daily", "06:00:00", "07:00:00"),
	)

	day := func(id int64, daysAgo int, machineID int64) models.DowntimeEvent {
		return models.DowntimeEvent{
			ID:              id,
			MachineID:       machineID,
			DurationMinutes: sql.NullFloat64{Float64: 20, Valid: true},
			RecordDate:      now.AddDate(0, 0, -daysAgo),
		}
	}
	src.AddDayDowntime(
		day(1, 2, 1),
		day(2, 1, 1),
		day(3, 1, 1),
		day(4, 1, 1),
		day(5, 5, 1),
		day(6, 1, 2),
	)

	result, err := newService(src, LinkageAuto).Recommend(context.Background(), models.RecommendationFilter{})
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, 4, rec.Metrics.BreakdownEvents)
	assert.Equal(t, 80, rec.Metrics.TotalDowntimeMinutes)
	assert.Equal(t, models.PriorityUrgent, rec.Priority)
	assert.Equal(t, "Schedule urgent maintenance - 4 breakdowns detected", rec.Recommendation)
}

func TestRecommend_Filters(t *testing.T) {
	svc := newService(seed(), LinkageRecord)

	result, err := svc.Recommend(context.Background(), models.RecommendationFilter{Location: "South"})
	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
	assert.NotNil(t, result.Recommendations)
	assert.Equal(t, models.StatusNoDowntimeData, result.Status)

	result, err = svc.Recommend(context.Background(), models.RecommendationFilter{
		StartDate: date(2024, 3, 9),
		EndDate:   date(2024, 3, 9),
	})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, int64(3), result.Recommendations[0].MachineID)

	// Only the overnight run and its two downtime entries fall on that day.
	narrowed := result.Recommendations[1]
	assert.Equal(t, int64(1), narrowed.MachineID)
	assert.Equal(t, 2, narrowed.Metrics.BreakdownEvents)
	assert.Equal(t, 1, narrowed.Metrics.ProductionRuns)
	assert.Equal(t, "Inspect and optimize machine settings", narrowed.Recommendation)
	assert.Equal(t, "Downtime: 60 min vs print time: 120 min", narrowed.Reason)
}

func TestRecommend_Errors(t *testing.T) {
	t.Run("invalid range", func(t *testing.T) {
		_, err := newService(seed(), LinkageRecord).Recommend(context.Background(), models.RecommendationFilter{
			StartDate: date(2024, 3, 5),
			EndDate:   date(2024, 3, 1),
		})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("unknown linkage", func(t *testing.T) {
		_, err := newService(seed(), "bogus").Recommend(context.Background(), models.RecommendationFilter{})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("datastore failure", func(t *testing.T) {
		src := seed()
		src.SetShouldFail(true, nil)
		_, err := newService(src, LinkageRecord).Recommend(context.Background(), models.RecommendationFilter{})
		assert.ErrorIs(t, err, datasource.ErrSourceFailed)
	})
}

func TestSelectResolver(t *testing.T) {
	src := datasource.NewMemorySource()

	r, err := SelectResolver(context.Background(), src, LinkageAuto)
	require.NoError(t, err)
	assert.Equal(t, LinkageDay, r.Name())

	src.SetRecordLinkage(true)
	r, err = SelectResolver(context.Background(), src, LinkageAuto)
	require.NoError(t, err)
	assert.Equal(t, LinkageRecord, r.Name())

	r, err = SelectResolver(context.Background(), src, LinkageDay)
	require.NoError(t, err)
	assert.Equal(t, LinkageDay, r.Name())
}
