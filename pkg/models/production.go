package models

import (
	"database/sql"
	"time"
)

// Machine is a print-production machine as listed by the datastore.
type Machine struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ProductionEvent is one production job record. Immutable once fetched.
type ProductionEvent struct {
	ID               int64          `db:"id" json:"id"`
	MachineID        int64          `db:"machine_id" json:"machine_id"`
	MachineName      sql.NullString `db:"machine_name" json:"-"`
	PublicationID    sql.NullInt64  `db:"publication_id" json:"-"`
	PublicationName  sql.NullString `db:"publication_name" json:"-"`
	TotalPages       int64          `db:"total_pages" json:"total_pages"`
	PlateConsumption float64        `db:"plate_consumption" json:"plate_consumption"`
	ColorPages       int64          `db:"color_pages" json:"color_pages"`
	BWPages          int64          `db:"bw_pages" json:"bw_pages"`
	RecordDate       time.Time      `db:"record_date" json:"record_date"`
	PageStartTime    sql.NullString `db:"page_start_time" json:"-"`
	PageEndTime      sql.NullString `db:"page_end_time" json:"-"`
	Location         sql.NullString `db:"location" json:"-"`
}

// DowntimeEvent is a recorded machine stoppage. Depending on the table it was
// read from, it is linked to a production record, to a calendar day, or both.
type DowntimeEvent struct {
	ID                       int64           `db:"id" json:"id"`
	MachineID                int64           `db:"machine_id" json:"machine_id"`
	ReasonID                 sql.NullInt64   `db:"reason_id" json:"-"`
	ReasonName               sql.NullString  `db:"reason_name" json:"-"`
	DurationText             sql.NullString  `db:"duration_text" json:"-"`
	DurationMinutes          sql.NullFloat64 `db:"duration_minutes" json:"-"`
	RecordDate               time.Time       `db:"record_date" json:"record_date"`
	LinkedProductionRecordID sql.NullInt64   `db:"production_record_id" json:"-"`
}

// Day truncates t to its calendar day in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MachineDay identifies one machine on one calendar day. Date is formatted
// with DateLayout so keys compare equal regardless of time.Location.
type MachineDay struct {
	MachineID int64
	Date      string
}

func NewMachineDay(machineID int64, t time.Time) MachineDay {
	return MachineDay{MachineID: machineID, Date: t.Format(DateLayout)}
}
