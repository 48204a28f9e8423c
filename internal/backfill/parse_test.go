package backfill

import (
	"testing"
	"time"
)

func TestParseHeat(t *testing.T) {
	tests := []struct {
		comment string
		want    int
		wantOK  bool
	}{
		{"heat: 5", 5, true},
		{"Heat:10\nsauce: buffalo", 10, true},
		{"crispy\nHEAT  :   7", 7, true},
		{"heat: 3 then heat: 9", 3, true},
		{"heat: 42", 42, true},
		{"heat: hot", 0, false},
		{"heat level unknown", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			got, ok := ParseHeat(tt.comment)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseHeat(%q) = (%d, %v), want (%d, %v)", tt.comment, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseCreatedAt(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    time.Time
		wantOK  bool
	}{
		{"date only", "creator: 2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"created with minutes", "created: 2024-01-15 14:30", time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), true},
		{"typo with seconds", "Creater:2023-12-31 23:59:58", time.Date(2023, 12, 31, 23, 59, 58, 0, time.UTC), true},
		{"single digit hour", "created: 2024-06-01 9:05", time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC), true},
		{"embedded in other lines", "sauce: hot\nCREATED : 2022-02-02\nheat: 4", time.Date(2022, 2, 2, 0, 0, 0, 0, time.UTC), true},
		{"invalid month", "created: 2024-13-01", time.Time{}, false},
		{"invalid hour", "created: 2024-01-01 25:00", time.Time{}, false},
		{"no marker", "2024-01-15", time.Time{}, false},
		{"wrong date format", "created: 15/01/2024", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCreatedAt(tt.comment)
			if ok != tt.wantOK {
				t.Fatalf("ParseCreatedAt(%q) ok = %v, want %v", tt.comment, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseCreatedAt(%q) = %v, want %v", tt.comment, got, tt.want)
			}
			if ok && got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}
