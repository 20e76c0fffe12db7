package queries

import (
	"context"
	"fmt"

	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const productionColumns = `
		pr.id,
		pr.machine_id,
		m.name AS machine_name,
		pr.publication_id,
		pub.name AS publication_name,
		pr.total_pages,
		pr.plate_consumption,
		pr.color_pages,
		pr.bw_pages,
		pr.record_date,
		pr.page_start_time,
		pr.page_end_time,
		u.location AS location`

type ProductionRepository struct {
	db *database.DB
}

func NewProductionRepository(db *database.DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

func (r *ProductionRepository) Find(ctx context.Context, filter ProductionFilter) ([]models.ProductionEvent, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	where, args := filter.where()
	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM production_records pr
		LEFT JOIN machines m ON pr.machine_id = m.id
		LEFT JOIN publications pub ON pr.publication_id = pub.id
		LEFT JOIN users u ON pr.user_id = u.id
		%s
		ORDER BY pr.record_date %s, pr.id %s`, productionColumns, where, order, order)

	query, args, err := expand(r.db.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build production query: %w", err)
	}

	var events []models.ProductionEvent
	if err := r.db.SelectCtx(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch production records: %w", err)
	}
	return events, nil
}
