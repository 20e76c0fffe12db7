package datasource

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/internal/resilience"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

var day0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func fixture() *MemorySource {
	src := NewMemorySource()
	src.AddMachine(models.Machine{ID: 2, Name: "Press B"})
	src.AddMachine(models.Machine{ID: 1, Name: "Press A"})
	src.AddProduction(
		models.ProductionEvent{ID: 1, MachineID: 1, RecordDate: day0, PublicationID: sql.NullInt64{Int64: 7, Valid: true}, Location: sql.NullString{String: "Pune", Valid: true}},
		models.ProductionEvent{ID: 2, MachineID: 1, RecordDate: day0.AddDate(0, 0, 1), PublicationID: sql.NullInt64{Int64: 9, Valid: true}},
		models.ProductionEvent{ID: 3, MachineID: 2, RecordDate: day0.AddDate(0, 0, 2), PublicationID: sql.NullInt64{Int64: 7, Valid: true}},
	)
	src.AddLinkedDowntime(
		models.DowntimeEvent{ID: 10, MachineID: 1, LinkedProductionRecordID: sql.NullInt64{Int64: 1, Valid: true}},
		models.DowntimeEvent{ID: 11, MachineID: 2, LinkedProductionRecordID: sql.NullInt64{Int64: 3, Valid: true}},
	)
	return src
}

func window() queries.ProductionFilter {
	return queries.ProductionFilter{Start: day0.AddDate(0, 0, -1), End: day0.AddDate(0, 0, 5)}
}

func ids(events []models.ProductionEvent) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestMemorySource_ProductionFilters(t *testing.T) {
	machine := int64(1)

	tests := []struct {
		name   string
		mutate func(f *queries.ProductionFilter)
		want   []int64
	}{
		{"window", func(f *queries.ProductionFilter) {}, []int64{1, 2, 3}},
		{"descending", func(f *queries.ProductionFilter) { f.Descending = true }, []int64{3, 2, 1}},
		{"machine", func(f *queries.ProductionFilter) { f.MachineID = &machine }, []int64{1, 2}},
		{"publications", func(f *queries.ProductionFilter) { f.PublicationIDs = []int64{7} }, []int64{1, 3}},
		{"location", func(f *queries.ProductionFilter) { f.Location = "Pune" }, []int64{1}},
		{"end exclusive", func(f *queries.ProductionFilter) { f.End = day0.AddDate(0, 0, 1) }, []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := window()
			tt.mutate(&f)

			events, err := fixture().ProductionEvents(context.Background(), f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(events))
		})
	}
}

func TestMemorySource_MachinesOrderedByName(t *testing.T) {
	machines, err := fixture().Machines(context.Background())
	require.NoError(t, err)
	require.Len(t, machines, 2)
	assert.Equal(t, "Press A", machines[0].Name)
	assert.Equal(t, "Press B", machines[1].Name)
}

func TestMemorySource_RecordLinkageDefaultsOff(t *testing.T) {
	src := NewMemorySource()

	linked, err := src.SupportsRecordLinkage(context.Background())
	require.NoError(t, err)
	assert.False(t, linked)

	src.SetRecordLinkage(true)
	linked, err = src.SupportsRecordLinkage(context.Background())
	require.NoError(t, err)
	assert.True(t, linked)
}

func TestMemorySource_DowntimeForRecords(t *testing.T) {
	events, err := fixture().DowntimeForRecords(context.Background(), []int64{3})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(11), events[0].ID)
}

func TestResilientSource_WrapsFailures(t *testing.T) {
	src := fixture()
	src.SetShouldFail(true, nil)

	rs := NewResilientSource(ResilientSourceConfig{
		Source:        src,
		MaxFailures:   2,
		Timeout:       time.Hour,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})

	_, err := rs.ProductionEvents(context.Background(), window())
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrSourceFailed)

	_, err = rs.Machines(context.Background())
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, resilience.StateOpen, rs.CircuitState())

	src.SetShouldFail(false, nil)
	_, err = rs.Machines(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	rs.ResetCircuit()
	machines, err := rs.Machines(context.Background())
	require.NoError(t, err)
	assert.Len(t, machines, 2)
}

func TestResilientSource_RetriesTransientFailure(t *testing.T) {
	src := &flakySource{MemorySource: fixture(), failuresLeft: 1}
	rs := NewResilientSource(ResilientSourceConfig{
		Source:        src,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	events, err := rs.ProductionEvents(context.Background(), window())
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, 0, src.failuresLeft)
}

func TestResilientSource_InvalidRangeIsInputError(t *testing.T) {
	src := fixture()
	rs := NewResilientSource(ResilientSourceConfig{Source: src, RetryAttempts: 3})

	_, err := rs.ProductionEvents(context.Background(), queries.ProductionFilter{Start: day0, End: day0})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.NotErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, 1, src.ProductionCalls())
}

type flakySource struct {
	*MemorySource
	failuresLeft int
}

func (s *flakySource) ProductionEvents(ctx context.Context, f queries.ProductionFilter) ([]models.ProductionEvent, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return nil, ErrSourceFailed
	}
	return s.MemorySource.ProductionEvents(ctx, f)
}
