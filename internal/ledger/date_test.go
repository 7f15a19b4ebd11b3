package ledger

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2024-05-01", Date{2024, time.May, 1}, false},
		{"2024-12-31", Date{2024, time.December, 31}, false},
		{"2024-5-1", Date{}, true},
		{"2024-02-30", Date{}, true},
		{"20240501", Date{}, true},
		{"", Date{}, true},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDateString(t *testing.T) {
	d := Date{2024, time.March, 7}
	if d.String() != "2024-03-07" {
		t.Errorf("got %s", d.String())
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-05-01"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Date != (Date{2024, time.May, 1}) {
		t.Errorf("got %v", payload.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"May 1"}`), &payload); err == nil {
		t.Error("expected error for malformed date")
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2024-05-01"}` {
		t.Errorf("got %s", out)
	}
}

func TestYearMonthContains(t *testing.T) {
	ym, err := ParseYearMonth("2024-05")
	if err != nil {
		t.Fatalf("ParseYearMonth: %v", err)
	}

	tests := []struct {
		date Date
		want bool
	}{
		{Date{2024, time.May, 1}, true},
		{Date{2024, time.May, 31}, true},
		{Date{2024, time.June, 1}, false},
		{Date{2023, time.May, 15}, false},
		{Date{2024, time.April, 30}, false},
	}
	for _, tt := range tests {
		if got := ym.Contains(tt.date); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestParseYearMonthInvalid(t *testing.T) {
	for _, in := range []string{"2024-5", "2024-13", "2024-05-01", ""} {
		if _, err := ParseYearMonth(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}
