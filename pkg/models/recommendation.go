package models

import "time"

type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityNormal Priority = "NORMAL"
)

const (
	AnalysisTypeDowntimeImpact = "downtime_impact"
	StatusRealData             = "real_data"
	StatusNoDowntimeData       = "no_downtime_data"
)

// RecommendationFilter narrows the production records considered for
// recommendations. A nil bound means "not set".
type RecommendationFilter struct {
	PublicationIDs []int64
	StartDate      *time.Time
	EndDate        *time.Time
	Location       string
}

// MachineEfficiencyAnalysis aggregates print time against downtime for one
// machine over the filtered window.
type MachineEfficiencyAnalysis struct {
	MachineID                int64    `json:"machine_id"`
	MachineName              string   `json:"machine_name"`
	TotalPrintTimeMinutes    float64  `json:"total_print_time_minutes"`
	TotalDowntimeMinutes     float64  `json:"total_downtime_minutes"`
	BreakdownCount           int      `json:"breakdown_count"`
	ReducibleDowntimeMinutes float64  `json:"reducible_downtime_minutes"`
	RecordCount              int      `json:"record_count"`
	AffectedPublications     []string `json:"affected_publications"`
	EfficiencyPercentage     float64  `json:"efficiency_percentage"`
	SkippedRecords           int      `json:"skipped_records,omitempty"`
}

// RecommendationMetrics is the snapshot attached to a recommendation.
type RecommendationMetrics struct {
	TotalPrintTimeMinutes    int      `json:"total_print_time_minutes"`
	TotalDowntimeMinutes     int      `json:"total_downtime_minutes"`
	ReducibleDowntimeMinutes int      `json:"reducible_downtime_minutes"`
	BreakdownEvents          int      `json:"breakdown_events"`
	EfficiencyPercentage     float64  `json:"efficiency_percentage"`
	ProductionRuns           int      `json:"production_runs"`
	AffectedPublications     []string `json:"affected_publications"`
}

type Recommendation struct {
	MachineID      int64                 `json:"machine_id"`
	MachineName    string                `json:"machine_name"`
	Priority       Priority              `json:"priority"`
	Recommendation string                `json:"recommendation"`
	Reason         string                `json:"reason"`
	SuggestedDate  string                `json:"suggested_date"`
	Metrics        RecommendationMetrics `json:"metrics"`
}

type RecommendationResult struct {
	Success         bool             `json:"success"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalUrgent     int              `json:"total_urgent"`
	TotalNormal     int              `json:"total_normal"`
	AnalysisType    string           `json:"analysis_type"`
	Status          string           `json:"status"`
}
