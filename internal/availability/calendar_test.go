package availability

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"08:00", NewTimeOfDay(8, 0), false},
		{"23:59", NewTimeOfDay(23, 59), false},
		{"09:30:00", NewTimeOfDay(9, 30), false},
		{"09:30:15", 0, true},
		{"24:00", 0, true},
		{"nine", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidTimeOfDay) {
			t.Errorf("expected ErrInvalidTimeOfDay, got %v", err)
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDate_WeekdayAndAt(t *testing.T) {
	d, err := ParseDate("2024-06-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Errorf("expected Monday, got %s", d.Weekday())
	}

	loc := time.FixedZone("COT", -5*60*60)
	at := d.At(NewTimeOfDay(10, 30), loc)
	want := time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Errorf("At() = %s, want %s", at, want)
	}
	if d.AddDays(1).String() != "2024-06-04" {
		t.Errorf("AddDays(1) = %s", d.AddDays(1))
	}
}

func TestDate_JSON(t *testing.T) {
	var body struct {
		Date  Date      `json:"date"`
		Start TimeOfDay `json:"start"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-06-03","start":"09:30"}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Date != NewDate(2024, time.June, 3) || body.Start != NewTimeOfDay(9, 30) {
		t.Errorf("unexpected decode result %+v", body)
	}

	if err := json.Unmarshal([]byte(`{"date":"03/06/2024"}`), &body); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestParseWeekday(t *testing.T) {
	wd, err := ParseWeekday("MONDAY")
	if err != nil || wd != time.Monday {
		t.Errorf("ParseWeekday(MONDAY) = %v, %v", wd, err)
	}
	if _, err := ParseWeekday("lunes"); !errors.Is(err, ErrInvalidWeekday) {
		t.Errorf("expected ErrInvalidWeekday, got %v", err)
	}
}
