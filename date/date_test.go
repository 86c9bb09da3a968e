package date

import (
	"encoding/json"
	"testing"
	"time"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestParse(t *testing.T) {
	testCases := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2025-07-01", New(2025, 7, 1), false},
		{"2025-7-1", New(2025, 7, 1), false},
		{"2024-02-30", Date{}, true},
		{"yesterday", Date{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewNormalizes(t *testing.T) {
	if got, want := New(2025, 1, 32), New(2025, 2, 1); got != want {
		t.Errorf("New(2025, 1, 32) = %v, want %v", got, want)
	}
	if got, want := New(2025, 3, 1).Add(-1), New(2025, 2, 28); got != want {
		t.Errorf("Add(-1) = %v, want %v", got, want)
	}
}

func TestJSON(t *testing.T) {
	var v struct {
		On Date `json:"on"`
	}
	if err := json.Unmarshal([]byte(`{"on":"2025-8-9"}`), &v); err != nil {
		t.Fatalf("Unmarshal() unexpected error = %v", err)
	}
	if v.On != New(2025, 8, 9) {
		t.Errorf("Unmarshal() = %v, want 2025-08-09", v.On)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}
	if got, want := string(out), `{"on":"2025-08-09"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestScan(t *testing.T) {
	testCases := []struct {
		name string
		src  any
		want Date
	}{
		{"time", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), New(2025, 3, 4)},
		{"string", "2025-03-04", New(2025, 3, 4)},
		{"timestamp bytes", []byte("2025-03-04T00:00:00Z"), New(2025, 3, 4)},
		{"nil", nil, Date{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tc.src); err != nil {
				t.Fatalf("Scan(%v) unexpected error = %v", tc.src, err)
			}
			if d != tc.want {
				t.Errorf("Scan(%v) = %v, want %v", tc.src, d, tc.want)
			}
		})
	}
}
