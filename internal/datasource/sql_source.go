package datasource

import (
	"context"
	"time"

	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type SQLSource struct {
	db         *database.DB
	production *queries.ProductionRepository
	downtime   *queries.DowntimeRepository
	machines   *queries.MachineRepository
}

func NewSQLSource(db *database.DB) *SQLSource {
	return &SQLSource{
		db:         db,
		production: queries.NewProductionRepository(db),
		downtime:   queries.NewDowntimeRepository(db),
		machines:   queries.NewMachineRepository(db),
	}
}

func (s *SQLSource) ProductionEvents(ctx context.Context, filter queries.ProductionFilter) ([]models.ProductionEvent, error) {
	return s.production.Find(ctx, filter)
}

func (s *SQLSource) DowntimeForRecords(ctx context.Context, recordIDs []int64) ([]models.DowntimeEvent, error) {
	return s.downtime.ByProductionRecords(ctx, recordIDs)
}

func (s *SQLSource) DowntimeInWindow(ctx context.Context, start, end time.Time, machineID *int64) ([]models.DowntimeEvent, error) {
	return s.downtime.InWindow(ctx, start, end, machineID)
}

func (s *SQLSource) Machines(ctx context.Context) ([]models.Machine, error) {
	return s.machines.GetAll(ctx)
}

func (s *SQLSource) SupportsRecordLinkage(ctx context.Context) (bool, error) {
	return s.downtime.SupportsRecordLinkage(ctx)
}

func (s *SQLSource) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}
