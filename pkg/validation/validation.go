package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/OldStager01/press-downtime/pkg/models"
)

const (
	maxLocationLength = 100
	maxPublicationIDs = 500
)

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// ParseMachineID parses an optional machine id. Empty input yields nil.
func ParseMachineID(raw string) (*int64, error) {
	raw = SanitizeString(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: machine_id must be a positive integer", models.ErrInvalidInput)
	}
	return &id, nil
}

// ParsePublicationIDs parses a comma-separated id list such as "1,2,3".
// Blank entries are ignored and duplicates collapse.
func ParsePublicationIDs(raw string) ([]int64, error) {
	raw = SanitizeString(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxPublicationIDs {
		return nil, fmt.Errorf("%w: at most %d publication_ids allowed", models.ErrInvalidInput, maxPublicationIDs)
	}

	seen := make(map[int64]bool, len(parts))
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: publication_ids contains %q", models.ErrInvalidInput, p)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// ParseDate parses an optional YYYY-MM-DD date in loc. Empty input yields nil.
func ParseDate(field, raw string, loc *time.Location) (*time.Time, error) {
	raw = SanitizeString(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(models.DateLayout, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", models.ErrInvalidInput, field)
	}
	return &t, nil
}

// ValidateLocation sanitizes a location filter value.
func ValidateLocation(raw string) (string, error) {
	loc := SanitizeString(raw)
	if len(loc) > maxLocationLength {
		return "", fmt.Errorf("%w: location must not exceed %d characters", models.ErrInvalidInput, maxLocationLength)
	}
	return loc, nil
}
