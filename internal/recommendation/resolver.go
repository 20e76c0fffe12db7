package recommendation

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const (
	LinkageAuto   = "auto"
	LinkageRecord = "record"
	LinkageDay    = "day"
)

// DowntimeResolver finds the downtime events that belong to a machine's
// production records.
type DowntimeResolver interface {
	Resolve(ctx context.Context, machineID int64, records []models.ProductionEvent) ([]models.DowntimeEvent, error)
	Name() string
}

// RecordLinkResolver matches downtime rows that reference a production record.
type RecordLinkResolver struct {
	source datasource.Source
}

func NewRecordLinkResolver(source datasource.Source) *RecordLinkResolver {
	return &RecordLinkResolver{source: source}
}

func (r *RecordLinkResolver) Name() string { return LinkageRecord }

func (r *RecordLinkResolver) Resolve(ctx context.Context, machineID int64, records []models.ProductionEvent) ([]models.DowntimeEvent, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return r.source.DowntimeForRecords(ctx, ids)
}

// DayMatchResolver matches downtime recorded for the same machine on a day
// that has at least one production record.
type DayMatchResolver struct {
	source datasource.Source
}

func NewDayMatchResolver(source datasource.Source) *DayMatchResolver {
	return &DayMatchResolver{source: source}
}

func (r *DayMatchResolver) Name() string { return LinkageDay }

func (r *DayMatchResolver) Resolve(ctx context.Context, machineID int64, records []models.ProductionEvent) ([]models.DowntimeEvent, error) {
	if len(records) == 0 {
		return nil, nil
	}

	days := make(map[models.MachineDay]bool, len(records))
	var minDay, maxDay time.Time
	for i, rec := range records {
		d := models.Day(rec.RecordDate)
		days[models.NewMachineDay(machineID, d)] = true
		if i == 0 || d.Before(minDay) {
			minDay = d
		}
		if i == 0 || d.After(maxDay) {
			maxDay = d
		}
	}

	candidates, err := r.source.DowntimeInWindow(ctx, minDay, maxDay.AddDate(0, 0, 1), &machineID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(candidates))
	matched := make([]models.DowntimeEvent, 0, len(candidates))
	for _, ev := range candidates {
		if seen[ev.ID] || ev.MachineID != machineID {
			continue
		}
		if !days[models.NewMachineDay(machineID, models.Day(ev.RecordDate))] {
			continue
		}
		seen[ev.ID] = true
		matched = append(matched, ev)
	}
	return matched, nil
}

// SelectResolver picks a resolver for the configured linkage. "auto" probes
// the datastore for record links and falls back to day matching.
func SelectResolver(ctx context.Context, source datasource.Source, linkage string) (DowntimeResolver, error) {
	switch linkage {
	case LinkageRecord:
		return NewRecordLinkResolver(source), nil
	case LinkageDay:
		return NewDayMatchResolver(source), nil
	case LinkageAuto, "":
		ok, err := source.SupportsRecordLinkage(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return NewRecordLinkResolver(source), nil
		}
		logger.Info("Downtime entries are not linked to production records, matching by day")
		return NewDayMatchResolver(source), nil
	default:
		return nil, fmt.Errorf("%w: unknown downtime linkage %q", models.ErrInvalidInput, linkage)
	}
}
