package analyzer

import (
	"math"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Config struct {
	MaxPublications int
	// ReducibleShare is the fraction of downtime considered addressable by maintenance.
	ReducibleShare float64
}

type Analyzer struct {
	config Config
}

func New(cfg Config) *Analyzer {
	if cfg.MaxPublications <= 0 {
		cfg.MaxPublications = 3
	}
	if cfg.ReducibleShare <= 0 {
		cfg.ReducibleShare = 1.0
	}
	return &Analyzer{config: cfg}
}

// Analyze sums print time and downtime for one machine. Records should be in
// the order publications are to be reported. Malformed values skip only the
// record or downtime entry they belong to.
func (a *Analyzer) Analyze(machine models.Machine, records []models.ProductionEvent, downtime []models.DowntimeEvent) models.MachineEfficiencyAnalysis {
	analysis := models.MachineEfficiencyAnalysis{
		MachineID:            machine.ID,
		MachineName:          machine.Name,
		RecordCount:          len(records),
		AffectedPublications: []string{},
	}

	seen := make(map[string]bool)
	for _, r := range records {
		if r.PageStartTime.Valid && r.PageEndTime.Valid &&
			r.PageStartTime.String != "" && r.PageEndTime.String != "" {
			minutes, err := PrintDuration(r.PageStartTime.String, r.PageEndTime.String)
			if err != nil {
				analysis.SkippedRecords++
				logger.WithMachine(machine.ID).Debugf("Could not parse times for record %d: %v", r.ID, err)
			} else if minutes > 0 {
				analysis.TotalPrintTimeMinutes += minutes
			}
		}

		if r.PublicationName.Valid && r.PublicationName.String != "" && !seen[r.PublicationName.String] {
			seen[r.PublicationName.String] = true
			if len(analysis.AffectedPublications) < a.config.MaxPublications {
				analysis.AffectedPublications = append(analysis.AffectedPublications, r.PublicationName.String)
			}
		}
	}

	for _, d := range downtime {
		minutes, err := DowntimeMinutes(d)
		if err != nil {
			analysis.SkippedRecords++
			logger.WithMachine(machine.ID).Debugf("Could not parse downtime %d: %v", d.ID, err)
			continue
		}
		analysis.TotalDowntimeMinutes += minutes
		analysis.BreakdownCount++
	}

	analysis.ReducibleDowntimeMinutes = analysis.TotalDowntimeMinutes * a.config.ReducibleShare
	analysis.EfficiencyPercentage = Efficiency(analysis.TotalPrintTimeMinutes, analysis.TotalDowntimeMinutes)

	logger.WithMachine(machine.ID).Debugf(
		"Analyzed: print_time=%.1fmin, downtime=%.1fmin, breakdowns=%d, efficiency=%.1f%%",
		analysis.TotalPrintTimeMinutes, analysis.TotalDowntimeMinutes, analysis.BreakdownCount, analysis.EfficiencyPercentage,
	)
	return analysis
}

// Efficiency is print time as a percentage of print time plus downtime, or
// 100 when both are zero.
func Efficiency(printMinutes, downtimeMinutes float64) float64 {
	total := printMinutes + downtimeMinutes
	if total <= 0 {
		return 100
	}
	return printMinutes / total * 100
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
