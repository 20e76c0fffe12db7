package queries

import (
	"context"
	"fmt"

	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type MachineRepository struct {
	db *database.DB
}

func NewMachineRepository(db *database.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

func (r *MachineRepository) GetAll(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	err := r.db.SelectCtx(ctx, &machines, `SELECT id, name FROM machines ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch machines: %w", err)
	}
	return machines, nil
}
