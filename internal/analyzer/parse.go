package analyzer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OldStager01/press-downtime/pkg/models"
)

const minutesPerDay = 24 * 60

var clockLayouts = []string{"15:04:05", "15:04"}

// ParseTimeOfDay returns minutes since midnight for "HH:MM:SS" or "HH:MM".
func ParseTimeOfDay(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60 + float64(t.Nanosecond())/6e10, nil
		}
	}
	return 0, fmt.Errorf("%w: time of day %q", models.ErrParse, s)
}

// PrintDuration returns the minutes between two times of day. An end before
// the start crosses midnight.
func PrintDuration(start, end string) (float64, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return 0, err
	}

	d := e - s
	if d < 0 {
		d += minutesPerDay
	}
	return d, nil
}

// ParseDuration converts "HH:MM:SS" (or a leading subset of its fields) to
// minutes. Hours may exceed 23.
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration", models.ErrParse)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: duration %q", models.ErrParse, s)
	}

	weights := []float64{60, 1, 1.0 / 60}
	var minutes float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: duration %q", models.ErrParse, s)
		}
		if i < 2 && v != float64(int64(v)) {
			return 0, fmt.Errorf("%w: duration %q", models.ErrParse, s)
		}
		minutes += v * weights[i]
	}
	return minutes, nil
}

// DowntimeMinutes prefers a numeric duration and falls back to parsing the
// textual one.
func DowntimeMinutes(e models.DowntimeEvent) (float64, error) {
	if e.DurationMinutes.Valid {
		if e.DurationMinutes.Float64 < 0 {
			return 0, fmt.Errorf("%w: negative duration %v", models.ErrParse, e.DurationMinutes.Float64)
		}
		return e.DurationMinutes.Float64, nil
	}
	if e.DurationText.Valid {
		return ParseDuration(e.DurationText.String)
	}
	return 0, fmt.Errorf("%w: downtime %d has no duration", models.ErrParse, e.ID)
}
