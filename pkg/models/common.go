package models

import (
	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// NewUUID generates a new UUID string
func NewUUID() string {
	return uuid.New().String()
}
