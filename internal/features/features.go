package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// ErrNoProductionData is returned for an empty production window. It is a
// DataUnavailable condition, never a zero-risk result.
var ErrNoProductionData = fmt.Errorf("%w: no production data", models.ErrDataUnavailable)

// Columns is the ordered model input. Training and prediction both build
// their matrices from it.
var Columns = []string{
	"total_pages",
	"total_plates",
	"color_pages",
	"bw_pages",
	"num_records",
	"plates_per_page",
	"color_ratio",
	"bw_ratio",
	"plates_per_page_ma3",
	"plates_per_page_ma7",
	"total_pages_ma3",
	"plates_deviation",
	"pages_deviation",
	"day_of_week",
}

type Config struct {
	ShortWindow   int
	LongWindow    int
	AnomalyFactor float64
}

type Builder struct {
	config Config
}

func New(cfg Config) *Builder {
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = 3
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = 7
	}
	if cfg.AnomalyFactor <= 0 {
		cfg.AnomalyFactor = 1.5
	}
	return &Builder{config: cfg}
}

type dayKey = models.MachineDay

type dayAgg struct {
	machineID int64
	name      string
	date      time.Time
	pages     float64
	plates    float64
	color     float64
	bw        float64
	records   int
}

// Build aggregates production events into one row per machine and calendar
// day. With downtime events, a row is labeled positive when its machine had
// downtime that day; without them, rows are labeled by the deviation anomaly
// rule. Output is ordered by date, then machine id.
func (b *Builder) Build(production []models.ProductionEvent, downtime []models.DowntimeEvent) ([]models.DailyMachineFeatureRow, error) {
	if len(production) == 0 {
		return nil, ErrNoProductionData
	}

	groups := make(map[dayKey]*dayAgg)
	for _, e := range production {
		key := models.NewMachineDay(e.MachineID, e.RecordDate)
		agg, ok := groups[key]
		if !ok {
			agg = &dayAgg{
				machineID: e.MachineID,
				date:      models.Day(e.RecordDate),
			}
			groups[key] = agg
		}
		if agg.name == "" && e.MachineName.Valid {
			agg.name = e.MachineName.String
		}
		agg.pages += float64(e.TotalPages)
		agg.plates += e.PlateConsumption
		agg.color += float64(e.ColorPages)
		agg.bw += float64(e.BWPages)
		agg.records++
	}

	byMachine := make(map[int64][]*dayAgg)
	for _, agg := range groups {
		if agg.name == "" {
			agg.name = fmt.Sprintf("Machine %d", agg.machineID)
		}
		byMachine[agg.machineID] = append(byMachine[agg.machineID], agg)
	}

	rows := make([]models.DailyMachineFeatureRow, 0, len(groups))
	for _, days := range byMachine {
		sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
		rows = append(rows, b.machineRows(days)...)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].MachineID < rows[j].MachineID
	})

	if len(downtime) > 0 {
		labelFromDowntime(rows, downtime)
	} else {
		b.labelAnomalies(rows)
	}

	logger.Debugf("Built %d feature rows from %d production events", len(rows), len(production))
	return rows, nil
}

// machineRows derives ratios and trailing windows over one machine's days,
// which must be sorted ascending.
func (b *Builder) machineRows(days []*dayAgg) []models.DailyMachineFeatureRow {
	rows := make([]models.DailyMachineFeatureRow, len(days))
	ppp := make([]float64, len(days))
	pages := make([]float64, len(days))

	for i, d := range days {
		denom := d.pages + 1
		ppp[i] = finite(d.plates / denom)
		pages[i] = d.pages

		_, week := d.date.ISOWeek()
		rows[i] = models.DailyMachineFeatureRow{
			MachineID:     d.machineID,
			MachineName:   d.name,
			Date:          d.date,
			TotalPages:    d.pages,
			TotalPlates:   d.plates,
			ColorPages:    d.color,
			BWPages:       d.bw,
			NumRecords:    d.records,
			PlatesPerPage: ppp[i],
			ColorRatio:    finite(d.color / denom),
			BWRatio:       finite(d.bw / denom),
			DayOfWeek:     (int(d.date.Weekday()) + 6) % 7,
			WeekNumber:    week,
		}
	}

	for i := range rows {
		rows[i].PlatesPerPageMA3 = trailingMean(ppp, i, b.config.ShortWindow)
		rows[i].PlatesPerPageMA7 = trailingMean(ppp, i, b.config.LongWindow)
		rows[i].TotalPagesMA3 = trailingMean(pages, i, b.config.ShortWindow)
		rows[i].PlatesDeviation = finite(rows[i].PlatesPerPage - rows[i].PlatesPerPageMA7)
		rows[i].PagesDeviation = finite(rows[i].TotalPages - rows[i].TotalPagesMA3)
	}
	return rows
}

// trailingMean is the mean of values[i-window+1 .. i], using as many
// observations as exist at the start of the series.
func trailingMean(values []float64, i, window int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	return finite(stat.Mean(values[start:i+1], nil))
}

func labelFromDowntime(rows []models.DailyMachineFeatureRow, downtime []models.DowntimeEvent) {
	days := make(map[dayKey]struct{}, len(downtime))
	for _, d := range downtime {
		days[models.NewMachineDay(d.MachineID, d.RecordDate)] = struct{}{}
	}
	for i := range rows {
		_, ok := days[models.NewMachineDay(rows[i].MachineID, rows[i].Date)]
		rows[i].HadDowntime = ok
	}
}

// labelAnomalies flags rows whose plate or page deviation exceeds
// AnomalyFactor sample standard deviations of the whole batch.
func (b *Builder) labelAnomalies(rows []models.DailyMachineFeatureRow) {
	if len(rows) < 2 {
		for i := range rows {
			rows[i].HadDowntime = false
		}
		return
	}

	plates := make([]float64, len(rows))
	pages := make([]float64, len(rows))
	for i, r := range rows {
		plates[i] = r.PlatesDeviation
		pages[i] = r.PagesDeviation
	}

	platesLimit := stat.StdDev(plates, nil) * b.config.AnomalyFactor
	pagesLimit := stat.StdDev(pages, nil) * b.config.AnomalyFactor

	for i := range rows {
		rows[i].HadDowntime = math.Abs(rows[i].PlatesDeviation) > platesLimit ||
			math.Abs(rows[i].PagesDeviation) > pagesLimit
	}
}

// Vector returns the row's model input in Columns order. Non-finite values
// become 0.
func Vector(r models.DailyMachineFeatureRow) []float64 {
	return []float64{
		finite(r.TotalPages),
		finite(r.TotalPlates),
		finite(r.ColorPages),
		finite(r.BWPages),
		float64(r.NumRecords),
		finite(r.PlatesPerPage),
		finite(r.ColorRatio),
		finite(r.BWRatio),
		finite(r.PlatesPerPageMA3),
		finite(r.PlatesPerPageMA7),
		finite(r.TotalPagesMA3),
		finite(r.PlatesDeviation),
		finite(r.PagesDeviation),
		float64(r.DayOfWeek),
	}
}

// Matrix stacks the rows' vectors. It returns nil for no rows.
func Matrix(rows []models.DailyMachineFeatureRow) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	data := make([]float64, 0, len(rows)*len(Columns))
	for _, r := range rows {
		data = append(data, Vector(r)...)
	}
	return mat.NewDense(len(rows), len(Columns), data)
}

func Labels(rows []models.DailyMachineFeatureRow) []int {
	labels := make([]int, len(rows))
	for i := range rows {
		labels[i] = rows[i].Label()
	}
	return labels
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
