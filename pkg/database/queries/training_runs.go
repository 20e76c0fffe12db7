package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type TrainingRun struct {
	ID              int64           `db:"id" json:"id"`
	Trigger         string          `db:"trigger" json:"trigger"`
	Success         bool            `db:"success" json:"success"`
	Error           sql.NullString  `db:"error" json:"-"`
	ModelVersion    sql.NullInt64   `db:"model_version" json:"-"`
	TrainAccuracy   sql.NullFloat64 `db:"train_accuracy" json:"-"`
	TestAccuracy    sql.NullFloat64 `db:"test_accuracy" json:"-"`
	Samples         sql.NullInt64   `db:"samples" json:"-"`
	PositiveSamples sql.NullInt64   `db:"positive_samples" json:"-"`
	DurationMillis  sql.NullInt64   `db:"duration_ms" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type TrainingRunRepository struct {
	db *database.DB
}

func NewTrainingRunRepository(db *database.DB) *TrainingRunRepository {
	return &TrainingRunRepository{db: db}
}

func (r *TrainingRunRepository) RecordRun(ctx context.Context, trigger string, result *models.TrainingResult) error {
	query := `
		INSERT INTO model_training_runs
			(trigger, success, error, model_version, train_accuracy, test_accuracy, samples, positive_samples, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	run := TrainingRun{
		Trigger: trigger,
		Success: result.Success,
		Error:   sql.NullString{String: result.Error, Valid: result.Error != ""},
	}
	if result.Success {
		run.ModelVersion = sql.NullInt64{Int64: result.ModelVersion, Valid: result.ModelVersion > 0}
		run.TrainAccuracy = sql.NullFloat64{Float64: result.TrainAccuracy, Valid: true}
		run.TestAccuracy = sql.NullFloat64{Float64: result.TestAccuracy, Valid: true}
		run.Samples = sql.NullInt64{Int64: int64(result.Samples), Valid: true}
		run.PositiveSamples = sql.NullInt64{Int64: int64(result.PositiveSamples), Valid: true}
	}
	run.DurationMillis = sql.NullInt64{Int64: result.DurationMillis, Valid: result.DurationMillis > 0}

	ctx, cancel := r.db.QueryCtx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, query,
		run.Trigger, run.Success, run.Error, run.ModelVersion, run.TrainAccuracy,
		run.TestAccuracy, run.Samples, run.PositiveSamples, run.DurationMillis,
	)
	if err != nil {
		return fmt.Errorf("failed to record training run: %w", err)
	}
	return nil
}

func (r *TrainingRunRepository) Recent(ctx context.Context, limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 10
	}

	var runs []TrainingRun
	err := r.db.SelectCtx(ctx, &runs, `
		SELECT id, trigger, success, error, model_version, train_accuracy, test_accuracy,
			samples, positive_samples, duration_ms, created_at
		FROM model_training_runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training runs: %w", err)
	}
	return runs, nil
}
