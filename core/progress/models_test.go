package progress

import "testing"

func TestComputePercentage(t *testing.T) {
	universe := []string{"l1", "l2", "l3", "l4"}

	tests := []struct {
		name     string
		viewed   []string
		universe []string
		want     int
	}{
		{name: "nothing viewed", viewed: nil, universe: universe, want: 0},
		{name: "one of four", viewed: []string{"l1"}, universe: universe, want: 25},
		{name: "all viewed", viewed: []string{"l1", "l2", "l3", "l4"}, universe: universe, want: 100},
		{name: "stale ids ignored", viewed: []string{"l1", "gone-1", "gone-2"}, universe: universe, want: 25},
		{name: "duplicates counted once", viewed: []string{"l1", "l1", "l2"}, universe: universe, want: 50},
		{name: "rounds to nearest", viewed: []string{"l1"}, universe: []string{"l1", "l2", "l3"}, want: 33},
		{name: "rounds up", viewed: []string{"l1", "l2"}, universe: []string{"l1", "l2", "l3"}, want: 67},
		{name: "empty universe", viewed: []string{"l1"}, universe: nil, want: 0},
		{name: "capped at 100", viewed: []string{"l1", "l1", "l2"}, universe: []string{"l1", "l2"}, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputePercentage(tt.viewed, tt.universe); got != tt.want {
				t.Errorf("ComputePercentage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgress_HasViewed(t *testing.T) {
	p := Progress{ViewedLessons: []string{"l1", "l3"}}
	if !p.HasViewed("l1") || !p.HasViewed("l3") {
		t.Error("HasViewed() missed a recorded lesson")
	}
	if p.HasViewed("l2") {
		t.Error("HasViewed() reported an unrecorded lesson")
	}
}
