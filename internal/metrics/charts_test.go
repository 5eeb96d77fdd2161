package metrics

import "testing"

func TestClampWindowHours(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 1},
		{-5, 1},
		{1, 1},
		{24, 24},
		{168, 168},
		{169, 168},
		{100000, 168},
	}
	for _, tc := range cases {
		if got := ClampWindowHours(tc.in); got != tc.want {
			t.Fatalf("ClampWindowHours(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampWindowDays(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 1},
		{7, 7},
		{30, 30},
		{31, 30},
	}
	for _, tc := range cases {
		if got := ClampWindowDays(tc.in); got != tc.want {
			t.Fatalf("ClampWindowDays(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTimelineLabel(t *testing.T) {
	if got := timelineLabel(3, 7, 9); got != "03/07 09:00" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := timelineLabel(25, 12, 23); got != "25/12 23:00" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestVehicleLabel(t *testing.T) {
	if got := vehicleLabel("car"); got != "Cars" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := vehicleLabel("scooter"); got != "scooter" {
		t.Fatalf("unknown class must pass through, got %q", got)
	}
}

func TestBuildHeatmap(t *testing.T) {
	rows := []heatmapRow{}

	monday9 := heatmapRow{AvgVehicles: 12.34}
	monday9.ID.DayOfWeek = 2 // Mongo: 1=Sunday.
	monday9.ID.Hour = 9
	rows = append(rows, monday9)

	outOfRange := heatmapRow{AvgVehicles: 99}
	outOfRange.ID.DayOfWeek = 9
	outOfRange.ID.Hour = 9
	rows = append(rows, outOfRange)

	heatmap := buildHeatmap(rows)
	if len(heatmap.Data) != 7 {
		t.Fatalf("expected 7 day rows, got %d", len(heatmap.Data))
	}
	for day, row := range heatmap.Data {
		if len(row) != 24 {
			t.Fatalf("day %d: expected 24 hour cells, got %d", day, len(row))
		}
	}
	if heatmap.Days[1] != "Mon" {
		t.Fatalf("unexpected day name %q", heatmap.Days[1])
	}
	if heatmap.Data[1][9] != 12.3 {
		t.Fatalf("expected rounded average at Mon 09:00, got %v", heatmap.Data[1][9])
	}
	if heatmap.Data[0][0] != 0 {
		t.Fatalf("untouched cells must be zero")
	}
}

func TestRound1(t *testing.T) {
	if got := round1(12.34); got != 12.3 {
		t.Fatalf("round1(12.34) = %v", got)
	}
	if got := round1(12.35); got != 12.4 {
		t.Fatalf("round1(12.35) = %v", got)
	}
}
