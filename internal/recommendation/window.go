package recommendation

import (
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/pkg/models"
)

// Window is a half-open date range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow turns optional start and end dates into a concrete window.
// The end date includes its whole calendar day. A missing side defaults to
// now or to defaultDays before the other side.
func ResolveWindow(start, end *time.Time, now time.Time, defaultDays int) (Window, error) {
	if defaultDays <= 0 {
		defaultDays = 30
	}

	var w Window
	switch {
	case start != nil && end != nil:
		w.Start = models.Day(*start)
		w.End = models.Day(*end).AddDate(0, 0, 1)
	case start != nil:
		w.Start = models.Day(*start)
		w.End = now
	case end != nil:
		w.End = models.Day(*end).AddDate(0, 0, 1)
		w.Start = w.End.AddDate(0, 0, -defaultDays)
	default:
		w.End = now
		w.Start = now.AddDate(0, 0, -defaultDays)
	}

	if !w.End.After(w.Start) {
		return Window{}, fmt.Errorf("%w: start date %s is after end date", models.ErrInvalidInput, w.Start.Format(models.DateLayout))
	}
	return w, nil
}
