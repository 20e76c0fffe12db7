package queries

import (
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrInvalidRange = errors.New("invalid date range")

// ProductionFilter selects production records in the half-open window
// [Start, End). Optional fields are ignored when zero.
type ProductionFilter struct {
	Start          time.Time
	End            time.Time
	MachineID      *int64
	PublicationIDs []int64
	Location       string
	Descending     bool
}

func (f ProductionFilter) Validate() error {
	if f.Start.IsZero() || f.End.IsZero() {
		return ErrInvalidRange
	}
	if !f.End.After(f.Start) {
		return ErrInvalidRange
	}
	return nil
}

// where assembles the WHERE clause with bindvar placeholders. The result
// must go through sqlx.In and Rebind before execution.
func (f ProductionFilter) where() (string, []interface{}) {
	clauses := []string{"pr.record_date >= ?", "pr.record_date < ?"}
	args := []interface{}{f.Start, f.End}

	if f.MachineID != nil {
		clauses = append(clauses, "pr.machine_id = ?")
		args = append(args, *f.MachineID)
	}
	if len(f.PublicationIDs) > 0 {
		clauses = append(clauses, "pr.publication_id IN (?)")
		args = append(args, f.PublicationIDs)
	}
	if f.Location != "" {
		clauses = append(clauses, "u.location = ?")
		args = append(args, f.Location)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func expand(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), a, nil
}
