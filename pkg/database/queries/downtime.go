package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type DowntimeRepository struct {
	db *database.DB
}

func NewDowntimeRepository(db *database.DB) *DowntimeRepository {
	return &DowntimeRepository{db: db}
}

// ByProductionRecords returns downtime entries linked to the given
// production records.
func (r *DowntimeRepository) ByProductionRecords(ctx context.Context, recordIDs []int64) ([]models.DowntimeEvent, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	query, args, err := expand(r.db.DB, `
		SELECT
			de.id,
			pr.machine_id,
			de.downtime_reason_id AS reason_id,
			dr.reason AS reason_name,
			de.downtime_duration AS duration_text,
			NULL::double precision AS duration_minutes,
			pr.record_date,
			de.production_record_id
		FROM downtime_entries de
		JOIN production_records pr ON pr.id = de.production_record_id
		LEFT JOIN downtime_reasons dr ON de.downtime_reason_id = dr.id
		WHERE de.production_record_id IN (?)
		ORDER BY de.id`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build downtime query: %w", err)
	}

	var events []models.DowntimeEvent
	if err := r.db.SelectCtx(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch downtime entries: %w", err)
	}
	return events, nil
}

// InWindow returns day-keyed downtime details recorded in [start, end),
// optionally restricted to one machine.
func (r *DowntimeRepository) InWindow(ctx context.Context, start, end time.Time, machineID *int64) ([]models.DowntimeEvent, error) {
	query := `
		SELECT
			dd.id,
			dd.machine_id,
			NULL::bigint AS reason_id,
			dd.downtime_reason AS reason_name,
			dd.downtime_duration AS duration_text,
			dd.total_seconds / 60.0 AS duration_minutes,
			dd.record_date,
			NULL::bigint AS production_record_id
		FROM downtime_details dd
		WHERE dd.record_date >= $1 AND dd.record_date < $2`
	args := []interface{}{start, end}

	if machineID != nil {
		query += " AND dd.machine_id = $3"
		args = append(args, *machineID)
	}
	query += " ORDER BY dd.record_date, dd.id"

	var events []models.DowntimeEvent
	if err := r.db.SelectCtx(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch downtime details: %w", err)
	}
	return events, nil
}

// SupportsRecordLinkage reports whether downtime entries carry an explicit
// production_record_id column.
func (r *DowntimeRepository) SupportsRecordLinkage(ctx context.Context) (bool, error) {
	return r.db.ColumnExists(ctx, "downtime_entries", "production_record_id")
}
