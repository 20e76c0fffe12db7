package models

type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// RiskLevelFor buckets a raw positive-class probability.
func RiskLevelFor(probability float64) RiskLevel {
	switch {
	case probability > 0.7:
		return RiskHigh
	case probability > 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Prediction is the downtime forecast for one machine on one day.
type Prediction struct {
	MachineID       int64     `json:"machine_id"`
	MachineName     string    `json:"machine_name"`
	Date            string    `json:"date"`
	DowntimeRisk    float64   `json:"downtime_risk"`
	RiskLevel       RiskLevel `json:"risk_level"`
	PlatesPerPage   float64   `json:"plates_per_page"`
	PlatesDeviation float64   `json:"plates_deviation"`
	TotalPages      int64     `json:"total_pages"`
}

type PredictionResult struct {
	Success         bool         `json:"success"`
	Predictions     []Prediction `json:"predictions"`
	HighRiskCount   int          `json:"high_risk_count"`
	MediumRiskCount int          `json:"medium_risk_count"`
	ModelVersion    int64        `json:"model_version,omitempty"`
}
