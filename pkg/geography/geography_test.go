package geography

import (
	"math"
	"testing"
)

func TestBasePosition(t *testing.T) {
	if _, group := BasePosition(nil); group {
		t.Errorf("empty input flagged as group")
	}

	solo := Point{X: 37.5, Y: 127.0}
	got, group := BasePosition([]Point{solo})
	if group || got != solo {
		t.Errorf("single member: got %+v group=%v", got, group)
	}

	got, group = BasePosition([]Point{
		{X: 37.50, Y: 127.00},
		{X: 37.52, Y: 127.02},
		{X: 37.54, Y: 127.04},
	})
	if !group {
		t.Errorf("multiple members not flagged as group")
	}
	if math.Abs(got.X-37.52) > 1e-9 || math.Abs(got.Y-127.02) > 1e-9 {
		t.Errorf("mean position = %+v", got)
	}
}

func TestDistanceMeters(t *testing.T) {
	a := Point{X: 37.5665, Y: 126.9780} // Seoul city hall
	b := Point{X: 37.5512, Y: 126.9882} // Namsan tower, roughly

	d := DistanceMeters(a, b)
	if d < 1500 || d > 2500 {
		t.Errorf("distance = %.0fm, want around 2km", d)
	}
	if DistanceMeters(a, a) != 0 {
		t.Errorf("distance to self = %v", DistanceMeters(a, a))
	}
}

func TestWithinRadius(t *testing.T) {
	a := Point{X: 37.5, Y: 127.0}
	near := Point{X: 37.501, Y: 127.001} // ~140m away
	far := Point{X: 37.52, Y: 127.02}

	if !WithinRadius(a, near, 500) {
		t.Errorf("near point outside 500m")
	}
	if WithinRadius(a, far, 500) {
		t.Errorf("far point inside 500m")
	}
}
