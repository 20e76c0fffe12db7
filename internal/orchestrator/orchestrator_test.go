package orchestrator

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/internal/training"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// seed fills src with 30 days for two machines. Heavy days are followed by
// downtime on the same day unless allDowntime marks every day.
func seed(src *datasource.MemorySource, allDowntime bool) {
	id := int64(1)
	for machine := int64(1); machine <= 2; machine++ {
		for day := 1; day <= 30; day++ {
			pages := int64(100)
			heavy := day%2 == 0
			if heavy {
				pages = 400
			}
			at := now.AddDate(0, 0, -day)
			src.AddProduction(models.ProductionEvent{
				ID:               id,
				MachineID:        machine,
				MachineName:      sql.NullString{String: "Press", Valid: true},
				TotalPages:       pages,
				PlateConsumption: float64(pages) / 10,
				ColorPages:       pages / 2,
				BWPages:          pages / 2,
				RecordDate:       at,
			})
			if heavy || allDowntime {
				src.AddDayDowntime(models.DowntimeEvent{
					ID:              id,
					MachineID:       machine,
					DurationMinutes: sql.NullFloat64{Float64: 30, Valid: true},
					RecordDate:      at,
				})
			}
			id++
		}
	}
}

func newRetrainer(t *testing.T, src datasource.Source) (*Retrainer, *model.Registry, *model.FileStore) {
	t.Helper()

	store, err := model.NewFileStore(t.TempDir())
	require.NoError(t, err)

	registry := model.NewRegistry()
	r := NewRetrainer(RetrainerConfig{
		Timeout:  time.Minute,
		Training: training.Config{Seed: 42, Forest: training.ForestConfig{Trees: 10}},
		Now:      func() time.Time { return now },
	}, src, registry, store, nil, metrics.New())
	t.Cleanup(r.Close)

	return r, registry, store
}

func TestRetrain_Success(t *testing.T) {
	src := datasource.NewMemorySource()
	seed(src, false)
	r, registry, store := newRetrainer(t, src)

	result, err := r.Retrain(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 60, result.Samples)
	assert.Equal(t, 30, result.PositiveSamples)
	assert.Equal(t, 48, result.TrainSamples)
	assert.Equal(t, 12, result.TestSamples)
	assert.Equal(t, int64(1), result.ModelVersion)
	assert.GreaterOrEqual(t, result.TrainAccuracy, 0.9)
	require.NotNil(t, result.TrainedAt)
	assert.True(t, now.Equal(*result.TrainedAt))

	state, ok := registry.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), state.Version)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted.Version)
}

func TestRetrain_SingleClassKeepsModel(t *testing.T) {
	src := datasource.NewMemorySource()
	seed(src, false)
	r, registry, _ := newRetrainer(t, src)

	_, err := r.Retrain(context.Background(), TriggerManual)
	require.NoError(t, err)
	before, _ := registry.Current()

	onlyDowntime := datasource.NewMemorySource()
	seed(onlyDowntime, true)
	r.source = onlyDowntime

	result, err := r.Retrain(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, models.ErrTrainingFailed)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)

	after, ok := registry.Current()
	require.True(t, ok)
	assert.Same(t, before, after)
}

func TestRetrain_NoProduction(t *testing.T) {
	r, registry, _ := newRetrainer(t, datasource.NewMemorySource())

	result, err := r.Retrain(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.False(t, result.Success)
	assert.False(t, registry.Ready())
}

func TestRetrain_SourceFailure(t *testing.T) {
	src := datasource.NewMemorySource()
	src.SetShouldFail(true, nil)
	r, _, _ := newRetrainer(t, src)

	result, err := r.Retrain(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, datasource.ErrSourceFailed)
	assert.Contains(t, result.Error, datasource.ErrSourceFailed.Error())
}

// gatedSource blocks production reads until released.
type gatedSource struct {
	datasource.Source
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) ProductionEvents(ctx context.Context, f queries.ProductionFilter) ([]models.ProductionEvent, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Source.ProductionEvents(ctx, f)
}

func TestRetrain_ConcurrentTriggersShareOneRun(t *testing.T) {
	mem := datasource.NewMemorySource()
	seed(mem, false)
	src := &gatedSource{Source: mem, entered: make(chan struct{}), release: make(chan struct{})}
	r, registry, _ := newRetrainer(t, src)

	const callers = 5
	results := make([]*models.TrainingResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Retrain(context.Background(), TriggerManual)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	<-src.entered
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, 1, mem.ProductionCalls())
	assert.Equal(t, int64(1), registry.Version())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, int64(1), res.ModelVersion)
	}
}

func TestRetrain_CallerCancelDoesNotAbortRun(t *testing.T) {
	mem := datasource.NewMemorySource()
	seed(mem, false)
	src := &gatedSource{Source: mem, entered: make(chan struct{}), release: make(chan struct{})}
	r, registry, _ := newRetrainer(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Retrain(ctx, TriggerManual)
		done <- err
	}()

	<-src.entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(src.release)
	assert.Eventually(t, registry.Ready, 5*time.Second, 10*time.Millisecond)
}

func TestWarmStart(t *testing.T) {
	src := datasource.NewMemorySource()
	seed(src, false)
	r, _, store := newRetrainer(t, src)

	loaded, err := r.WarmStart(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)

	_, err = r.Retrain(context.Background(), TriggerManual)
	require.NoError(t, err)

	fresh := model.NewRegistry()
	restarted := NewRetrainer(RetrainerConfig{}, src, fresh, store, nil, nil)
	defer restarted.Close()

	loaded, err = restarted.WarmStart(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.True(t, fresh.Ready())
	assert.Equal(t, int64(1), fresh.Version())
}

func TestOrchestrator_StartupTraining(t *testing.T) {
	src := datasource.NewMemorySource()
	seed(src, false)
	registry := model.NewRegistry()

	o := New(Config{
		TrainOnStartup: true,
		Schedule:       "0 0 2 * * *",
		Retrainer: RetrainerConfig{
			Training: training.Config{Forest: training.ForestConfig{Trees: 10}},
			Now:      func() time.Time { return now },
		},
	}, Dependencies{Source: src, Registry: registry})

	events := o.SubscribeEvents(models.EventTypeModelSwapped)

	require.NoError(t, o.Start())
	defer o.Stop()

	select {
	case ev := <-events:
		assert.Equal(t, models.EventTypeModelSwapped, ev.Type)
	case <-time.After(10 * time.Second):
		t.Fatal("startup training did not swap a model")
	}

	assert.True(t, registry.Ready())
	assert.False(t, o.NextRun().IsZero())
}

func TestOrchestrator_InvalidSchedule(t *testing.T) {
	o := New(Config{Schedule: "not a schedule"}, Dependencies{
		Source:   datasource.NewMemorySource(),
		Registry: model.NewRegistry(),
	})

	assert.Error(t, o.Start())
}
