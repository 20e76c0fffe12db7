package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/pkg/models"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "North", SanitizeString("  No\x00rth\n "))
}

func TestParseMachineID(t *testing.T) {
	id, err := ParseMachineID("")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = ParseMachineID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), *id)

	for _, bad := range []string{"abc", "-1", "0", "1.5"} {
		_, err := ParseMachineID(bad)
		assert.ErrorIs(t, err, models.ErrInvalidInput, bad)
	}
}

func TestParsePublicationIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{"", nil, false},
		{"1,2,3", []int64{1, 2, 3}, false},
		{" 4 , 4, ,5", []int64{4, 5}, false},
		{",", nil, false},
		{"1,x", nil, true},
		{"1,-2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePublicationIDs(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePublicationIDs(strings.Repeat("1,", maxPublicationIDs+1))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("start_date", "2024-03-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDate("start_date", "", nil)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDate("end_date", "03/01/2024", time.UTC)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "end_date")
}

func TestValidateLocation(t *testing.T) {
	loc, err := ValidateLocation(" North ")
	require.NoError(t, err)
	assert.Equal(t, "North", loc)

	_, err = ValidateLocation(strings.Repeat("x", maxLocationLength+1))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
