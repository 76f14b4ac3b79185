package graph

import "testing"

func TestFare(t *testing.T) {
	cfg := FareConfig{BaseFare: 10, PerStationFare: 5}

	cases := []struct {
		name string
		path []int64
		want int64
	}{
		{"nil path", nil, 0},
		{"single station", []int64{1}, 0},
		{"one hop", []int64{1, 2}, 15},
		{"five stations", []int64{1, 2, 3, 4, 5}, 30},
	}
	for _, tc := range cases {
		if got := cfg.Fare(tc.path); got != tc.want {
			t.Errorf("%s: fare = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestFareIsStable(t *testing.T) {
	cfg := FareConfigFromEnv()
	path := []int64{1, 2, 3}
	first := cfg.Fare(path)
	for i := 0; i < 10; i++ {
		if got := cfg.Fare(path); got != first {
			t.Fatalf("fare changed between calls: %d vs %d", got, first)
		}
	}
}
