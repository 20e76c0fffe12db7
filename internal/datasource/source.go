package datasource

import (
	"context"
	"time"

	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// Source is the read-only view of the production datastore used by the
// analytical pipelines.
type Source interface {
	// ProductionEvents returns production records matching filter.
	ProductionEvents(ctx context.Context, filter queries.ProductionFilter) ([]models.ProductionEvent, error)

	// DowntimeForRecords returns downtime entries linked to the given production records.
	DowntimeForRecords(ctx context.Context, recordIDs []int64) ([]models.DowntimeEvent, error)

	// DowntimeInWindow returns day-keyed downtime recorded in [start, end).
	DowntimeInWindow(ctx context.Context, start, end time.Time, machineID *int64) ([]models.DowntimeEvent, error)

	// Machines lists machines ordered by name.
	Machines(ctx context.Context) ([]models.Machine, error)

	// SupportsRecordLinkage reports whether downtime rows reference production records.
	SupportsRecordLinkage(ctx context.Context) (bool, error)

	HealthCheck(ctx context.Context) error
}
