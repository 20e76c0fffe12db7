package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Config struct {
	CriticalBreakdowns int
	CriticalDowntime   float64
	UrgentBreakdowns   int
	UrgentDowntime     float64
	PlannedBreakdowns  int
	MinEfficiency      float64
	UrgentLeadDays     int
	NormalLeadDays     int
	Now                func() time.Time
}

type Engine struct {
	config Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.CriticalBreakdowns == 0 {
		cfg.CriticalBreakdowns = 5
	}
	if cfg.CriticalDowntime == 0 {
		cfg.CriticalDowntime = 120
	}
	if cfg.UrgentBreakdowns == 0 {
		cfg.UrgentBreakdowns = 3
	}
	if cfg.UrgentDowntime == 0 {
		cfg.UrgentDowntime = 60
	}
	if cfg.PlannedBreakdowns == 0 {
		cfg.PlannedBreakdowns = 2
	}
	if cfg.MinEfficiency == 0 {
		cfg.MinEfficiency = 85
	}
	if cfg.UrgentLeadDays == 0 {
		cfg.UrgentLeadDays = 1
	}
	if cfg.NormalLeadDays == 0 {
		cfg.NormalLeadDays = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{config: cfg}
}

// Eligible reports whether a machine has enough activity to be judged.
func Eligible(a models.MachineEfficiencyAnalysis) bool {
	if a.TotalPrintTimeMinutes == 0 && a.TotalDowntimeMinutes == 0 {
		return false
	}
	return a.BreakdownCount > 0
}

// Decide applies the maintenance rules in order. The first rule that matches
// wins; false means no action is recommended.
func (e *Engine) Decide(a models.MachineEfficiencyAnalysis) (*models.Recommendation, bool) {
	if !Eligible(a) {
		return nil, false
	}

	n := a.BreakdownCount
	downtime := a.TotalDowntimeMinutes
	eff := a.EfficiencyPercentage

	var (
		priority models.Priority
		action   string
		reason   string
	)

	switch {
	case n > e.config.CriticalBreakdowns && downtime > e.config.CriticalDowntime:
		priority = models.PriorityUrgent
		action = fmt.Sprintf("CRITICAL MAINTENANCE - %d breakdowns, %.0f min downtime", n, downtime)
		reason = fmt.Sprintf("Machine efficiency dropped to %.1f%%. Immediate inspection needed.", eff)
	case n > e.config.UrgentBreakdowns && downtime > e.config.UrgentDowntime:
		priority = models.PriorityUrgent
		action = fmt.Sprintf("Schedule urgent maintenance - %d breakdowns detected", n)
		reason = fmt.Sprintf("Total downtime: %.0f minutes. Could improve efficiency by %.1f%%", downtime, 100-eff)
	case n > e.config.PlannedBreakdowns:
		priority = models.PriorityNormal
		action = fmt.Sprintf("Plan preventive maintenance - %d recent breakdowns", n)
		reason = fmt.Sprintf("Pattern detected. Current efficiency: %.1f%%", eff)
	case eff < e.config.MinEfficiency:
		priority = models.PriorityNormal
		action = "Inspect and optimize machine settings"
		reason = fmt.Sprintf("Downtime: %.0f min vs print time: %.0f min", downtime, a.TotalPrintTimeMinutes)
	default:
		logger.WithMachine(a.MachineID).Debug("Decision: no maintenance needed")
		return nil, false
	}

	rec := &models.Recommendation{
		MachineID:      a.MachineID,
		MachineName:    a.MachineName,
		Priority:       priority,
		Recommendation: action,
		Reason:         reason,
		SuggestedDate:  e.suggestedDate(priority),
		Metrics:        metricsFor(a),
	}

	logger.WithMachine(a.MachineID).Infof("Decision: %s (%s)", priority, action)
	return rec, true
}

func (e *Engine) suggestedDate(p models.Priority) string {
	days := e.config.NormalLeadDays
	if p == models.PriorityUrgent {
		days = e.config.UrgentLeadDays
	}
	return e.config.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func metricsFor(a models.MachineEfficiencyAnalysis) models.RecommendationMetrics {
	pubs := a.AffectedPublications
	if pubs == nil {
		pubs = []string{}
	}
	return models.RecommendationMetrics{
		TotalPrintTimeMinutes:    int(a.TotalPrintTimeMinutes),
		TotalDowntimeMinutes:     int(a.TotalDowntimeMinutes),
		ReducibleDowntimeMinutes: int(a.ReducibleDowntimeMinutes),
		BreakdownEvents:          a.BreakdownCount,
		EfficiencyPercentage:     math.Round(a.EfficiencyPercentage*10) / 10,
		ProductionRuns:           a.RecordCount,
		AffectedPublications:     pubs,
	}
}
