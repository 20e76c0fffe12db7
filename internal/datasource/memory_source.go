package datasource

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

var ErrSourceFailed = errors.New("datastore unavailable")

// MemorySource serves fixtures from memory with the same filter semantics
// as SQLSource. Used by tests and local dry runs.
type MemorySource struct {
	mu              sync.RWMutex
	machines        []models.Machine
	production      []models.ProductionEvent
	linkedDowntime  []models.DowntimeEvent
	dayDowntime     []models.DowntimeEvent
	recordLinkage   bool
	shouldFail      bool
	failureError    error
	productionCalls int
}

// NewMemorySource starts without the production_record_id link, like a
// schema that only has per-day downtime details.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

func (s *MemorySource) AddMachine(m models.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines = append(s.machines, m)
}

func (s *MemorySource) AddProduction(events ...models.ProductionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.production = append(s.production, events...)
}

// AddLinkedDowntime adds downtime entries keyed by production record.
func (s *MemorySource) AddLinkedDowntime(events ...models.DowntimeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkedDowntime = append(s.linkedDowntime, events...)
}

// AddDayDowntime adds downtime details keyed by machine and day.
func (s *MemorySource) AddDayDowntime(events ...models.DowntimeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayDowntime = append(s.dayDowntime, events...)
}

func (s *MemorySource) SetRecordLinkage(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLinkage = enabled
}

func (s *MemorySource) SetShouldFail(shouldFail bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFail = shouldFail
	s.failureError = err
}

func (s *MemorySource) ProductionCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productionCalls
}

func (s *MemorySource) failure() error {
	if !s.shouldFail {
		return nil
	}
	if s.failureError != nil {
		return s.failureError
	}
	return ErrSourceFailed
}

func (s *MemorySource) ProductionEvents(ctx context.Context, filter queries.ProductionFilter) ([]models.ProductionEvent, error) {
	s.mu.Lock()
	s.productionCalls++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	pubs := make(map[int64]bool, len(filter.PublicationIDs))
	for _, id := range filter.PublicationIDs {
		pubs[id] = true
	}

	var out []models.ProductionEvent
	for _, e := range s.production {
		if e.RecordDate.Before(filter.Start) || !e.RecordDate.Before(filter.End) {
			continue
		}
		if filter.MachineID != nil && e.MachineID != *filter.MachineID {
			continue
		}
		if len(pubs) > 0 && (!e.PublicationID.Valid || !pubs[e.PublicationID.Int64]) {
			continue
		}
		if filter.Location != "" && (!e.Location.Valid || e.Location.String != filter.Location) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if filter.Descending {
			a, b = b, a
		}
		if !a.RecordDate.Equal(b.RecordDate) {
			return a.RecordDate.Before(b.RecordDate)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *MemorySource) DowntimeForRecords(ctx context.Context, recordIDs []int64) ([]models.DowntimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure(); err != nil {
		return nil, err
	}

	ids := make(map[int64]bool, len(recordIDs))
	for _, id := range recordIDs {
		ids[id] = true
	}

	var out []models.DowntimeEvent
	for _, e := range s.linkedDowntime {
		if e.LinkedProductionRecordID.Valid && ids[e.LinkedProductionRecordID.Int64] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemorySource) DowntimeInWindow(ctx context.Context, start, end time.Time, machineID *int64) ([]models.DowntimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure(); err != nil {
		return nil, err
	}

	var out []models.DowntimeEvent
	for _, e := range s.dayDowntime {
		if e.RecordDate.Before(start) || !e.RecordDate.Before(end) {
			continue
		}
		if machineID != nil && e.MachineID != *machineID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemorySource) Machines(ctx context.Context) ([]models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure(); err != nil {
		return nil, err
	}

	out := append([]models.Machine(nil), s.machines...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemorySource) SupportsRecordLinkage(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure(); err != nil {
		return false, err
	}
	return s.recordLinkage, nil
}

func (s *MemorySource) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure()
}
