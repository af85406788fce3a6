package mathx

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	cases := []struct {
		v      float64
		places int32
		want   float64
	}{
		{2.675, 2, 2.68},
		{-1.005, 2, -1.01},
		{0.15625, 4, 0.1563},
		{100, 2, 100},
	}
	for _, c := range cases {
		if got := Round(c.v, c.places); got != c.want {
			t.Errorf("Round(%v, %d) = %v, want %v", c.v, c.places, got, c.want)
		}
	}
	if !math.IsNaN(Round(math.NaN(), 2)) {
		t.Errorf("NaN should pass through")
	}
}

func TestStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(xs); got != 5 {
		t.Fatalf("mean = %v", got)
	}
	if got := StdDev(xs); got != 2 {
		t.Fatalf("population stddev = %v, want 2", got)
	}
	if StdDev(nil) != 0 || Mean(nil) != 0 {
		t.Fatalf("empty input should give 0")
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-5, 0, 100) != 0 || Clamp(150, 0, 100) != 100 || Clamp(42, 0, 100) != 42 {
		t.Fatal("clamp bounds wrong")
	}
}
