package photos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNewQueryWindow(t *testing.T) {
	tests := []struct {
		name                string
		ref                 time.Time
		years, months, days int
		wantStart, wantEnd  Date
	}{
		{"one month", day(2024, 3, 5), 0, 1, 0, Date{2024, 2, 5}, Date{2024, 3, 5}},
		{"clamp to leap february", day(2024, 3, 31), 0, 1, 0, Date{2024, 2, 29}, Date{2024, 3, 31}},
		{"clamp to february", day(2023, 3, 30), 0, 1, 0, Date{2023, 2, 28}, Date{2023, 3, 30}},
		{"across year boundary", day(2024, 1, 15), 0, 2, 0, Date{2023, 11, 15}, Date{2024, 1, 15}},
		{"years from leap day", day(2024, 2, 29), 1, 0, 0, Date{2023, 2, 28}, Date{2024, 2, 29}},
		{"days only", day(2024, 3, 5), 0, 0, 10, Date{2024, 2, 24}, Date{2024, 3, 5}},
		{"months then days", day(2024, 3, 31), 0, 1, 1, Date{2024, 2, 28}, Date{2024, 3, 31}},
		{"all components", day(2024, 5, 20), 1, 2, 3, Date{2023, 3, 17}, Date{2024, 5, 20}},
		{"empty window", day(2024, 3, 5), 0, 0, 0, Date{2024, 3, 5}, Date{2024, 3, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewQueryWindow(tt.ref, tt.years, tt.months, tt.days)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.wantEnd, w.End)
		})
	}
}

func TestQueryWindowString(t *testing.T) {
	w := NewQueryWindow(day(2024, 3, 5), 0, 1, 0)
	assert.Equal(t, "2024-02-05..2024-03-05", w.String())
}

func TestDownloadURL(t *testing.T) {
	d := MediaDescriptor{ID: "id1", Filename: "a.jpg", SourceURL: "https://lh3.example/abc"}
	assert.Equal(t, "https://lh3.example/abc=d", DownloadURL(d, KindPhoto))
	assert.Equal(t, "https://lh3.example/abc=dv", DownloadURL(d, KindVideo))
}
