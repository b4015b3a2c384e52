package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		opts DateOptions
		want string
	}{
		{"iso", "2024-03-15", DateOptions{}, "2024-03-15"},
		{"iso with time", "2024-03-15 14:30:00", DateOptions{}, "2024-03-15"},
		{"rfc3339", "2024-03-15T14:30:00Z", DateOptions{}, "2024-03-15"},
		{"us slash", "06/27/2025", DateOptions{}, "2025-06-27"},
		{"us short", "6/7/2025", DateOptions{}, "2025-06-07"},
		{"eu slash day first", "27/06/2025", DateOptions{DayFirst: true}, "2025-06-27"},
		{"eu dot", "27.06.2025", DateOptions{DayFirst: true}, "2025-06-27"},
		{"ambiguous day first", "03/04/2024", DateOptions{DayFirst: true}, "2024-04-03"},
		{"ambiguous month first", "03/04/2024", DateOptions{}, "2024-03-04"},
		{"month name", "Jan 2, 2006", DateOptions{}, "2006-01-02"},
		{"day month name", "2 Jan 2006", DateOptions{}, "2006-01-02"},
		{"year first slash", "2024/03/15", DateOptions{}, "2024-03-15"},
		{"compact", "20240315", DateOptions{}, "2024-03-15"},
		{"quarter leading", "Q1 2024", DateOptions{}, "2024-01-01"},
		{"quarter trailing", "2024-Q3", DateOptions{}, "2024-07-01"},
		{"unix seconds", "1710460800", DateOptions{}, "2024-03-15"},
		{"unix millis", "1710460800000", DateOptions{}, "2024-03-15"},
		{"explicit layout", "15|03|2024", DateOptions{Layout: "02|01|2006"}, "2024-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.raw, tt.opts)
			require.True(t, ok)
			assert.Equal(t, tt.want, FormatDate(got))
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "not a date"},
		{"sentinel min", "0001-01-01"},
		{"sentinel max", "9999-12-31"},
		{"month thirteen", "13/32/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseDate(tt.raw, DateOptions{})
			assert.False(t, ok)
		})
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 3, 15, 14, 30, 45, 12, time.FixedZone("X", 3600))
	got := DateOnly(in)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
}

func BenchmarkParseDate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ParseDate("06/27/2025", DateOptions{})
	}
}

func TestDetectDayFirst(t *testing.T) {
	t.Run("day leads", func(t *testing.T) {
		dayFirst, ok := DetectDayFirst([]string{"05/06/2024", "27/06/2024"})
		assert.True(t, ok)
		assert.True(t, dayFirst)
	})

	t.Run("month leads", func(t *testing.T) {
		dayFirst, ok := DetectDayFirst([]string{"06/27/2024"})
		assert.True(t, ok)
		assert.False(t, dayFirst)
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, ok := DetectDayFirst([]string{"03/04/2024", "05/06/2024"})
		assert.False(t, ok)
	})
}
