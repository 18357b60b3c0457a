package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "date only", raw: "2000-01-01", want: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", raw: "2030-05-06T07:08:09Z", want: time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)},
		{name: "datetime-local", raw: "2030-05-06T07:08", want: time.Date(2030, 5, 6, 7, 8, 0, 0, time.UTC)},
		{name: "far future", raw: "9999-12-31", want: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "sub-microsecond truncated", raw: "2030-05-06T07:08:09.123456789Z", want: time.Date(2030, 5, 6, 7, 8, 9, 123456000, time.UTC)},
		{name: "surrounding whitespace", raw: "  2030-05-06  ", want: time.Date(2030, 5, 6, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseExpiry(tt.raw)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseExpiry_Blank(t *testing.T) {
	got, err := domain.ParseExpiry("   ")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseExpiry_Invalid(t *testing.T) {
	_, err := domain.ParseExpiry("next tuesday")
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}
