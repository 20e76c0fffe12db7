package models

import "time"

// DailyMachineFeatureRow is the per-machine, per-day aggregate used for both
// training and inference. Rebuilt on every run.
type DailyMachineFeatureRow struct {
	MachineID        int64     `json:"machine_id"`
	MachineName      string    `json:"machine_name"`
	Date             time.Time `json:"date"`
	TotalPages       float64   `json:"total_pages"`
	TotalPlates      float64   `json:"total_plates"`
	ColorPages       float64   `json:"color_pages"`
	BWPages          float64   `json:"bw_pages"`
	NumRecords       int       `json:"num_records"`
	PlatesPerPage    float64   `json:"plates_per_page"`
	ColorRatio       float64   `json:"color_ratio"`
	BWRatio          float64   `json:"bw_ratio"`
	PlatesPerPageMA3 float64   `json:"plates_per_page_ma3"`
	PlatesPerPageMA7 float64   `json:"plates_per_page_ma7"`
	TotalPagesMA3    float64   `json:"total_pages_ma3"`
	PlatesDeviation  float64   `json:"plates_deviation"`
	PagesDeviation   float64   `json:"pages_deviation"`
	DayOfWeek        int       `json:"day_of_week"`
	WeekNumber       int       `json:"week_number"`
	HadDowntime      bool      `json:"had_downtime"`
}

func (r *DailyMachineFeatureRow) Label() int {
	if r.HadDowntime {
		return 1
	}
	return 0
}
