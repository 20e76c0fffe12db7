package queries

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionFilterValidate(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filter  ProductionFilter
		wantErr bool
	}{
		{"valid", ProductionFilter{Start: now.AddDate(0, 0, -30), End: now}, false},
		{"missing start", ProductionFilter{End: now}, true},
		{"missing end", ProductionFilter{Start: now}, true},
		{"reversed", ProductionFilter{Start: now, End: now.AddDate(0, 0, -1)}, true},
		{"empty", ProductionFilter{Start: now, End: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProductionFilterWhere(t *testing.T) {
	db := sqlx.NewDb(nil, "postgres")
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	machineID := int64(4)

	t.Run("window only", func(t *testing.T) {
		where, args := ProductionFilter{Start: start, End: end}.where()
		query, args, err := expand(db, where, args...)
		require.NoError(t, err)

		assert.Equal(t, "WHERE pr.record_date >= $1 AND pr.record_date < $2", query)
		assert.Len(t, args, 2)
	})

	t.Run("all filters", func(t *testing.T) {
		filter := ProductionFilter{
			Start:          start,
			End:            end,
			MachineID:      &machineID,
			PublicationIDs: []int64{7, 9, 11},
			Location:       "Pune",
		}
		where, args := filter.where()
		query, args, err := expand(db, where, args...)
		require.NoError(t, err)

		assert.Equal(t,
			"WHERE pr.record_date >= $1 AND pr.record_date < $2 AND pr.machine_id = $3 "+
				"AND pr.publication_id IN ($4, $5, $6) AND u.location = $7",
			query)
		assert.Equal(t, []interface{}{start, end, int64(4), int64(7), int64(9), int64(11), "Pune"}, args)
	})
}
