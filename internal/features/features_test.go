package features

import (
	"math"
	"testing"

	"github.com/traitcapture/timestream/internal/raster"
)

// square returns a mask with a filled s×s square whose corner is at
// (y0, x0).
func square(h, w, y0, x0, s int) *raster.Mask {
	m := raster.NewMask(h, w)
	for y := y0; y < y0+s; y++ {
		for x := x0; x < x0+s; x++ {
			m.Set(y, x, 1)
		}
	}
	return m
}

func TestNamesSortedAndComplete(t *testing.T) {
	names := Names()
	if len(names) != len(catalog) {
		t.Fatalf("Names() = %d entries, catalog holds %d", len(names), len(catalog))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}

func TestComputeUnknown(t *testing.T) {
	if _, err := Compute("no-such", raster.NewMask(1, 1)); err == nil {
		t.Error("unknown feature should error")
	}
}

func TestAreaAndExtents(t *testing.T) {
	m := square(10, 10, 2, 3, 4)
	checks := map[string]float64{
		"area":   16,
		"height": 4,
		"width":  4,
	}
	for name, want := range checks {
		got, err := Compute(name, m)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestPerimeter(t *testing.T) {
	// 4×4 square: every cell except the inner 2×2 touches background.
	m := square(10, 10, 2, 3, 4)
	got, err := Compute("perimeter", m)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Errorf("perimeter = %v, want 12", got)
	}

	// A square flush with the image border still counts border cells.
	edge := square(4, 4, 0, 0, 4)
	got, err = Compute("perimeter", edge)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Errorf("border perimeter = %v, want 12", got)
	}
}

func TestCentroid(t *testing.T) {
	m := square(10, 10, 2, 4, 2) // rows 2-3, cols 4-5
	cx, err := Compute("centroid_x", m)
	if err != nil {
		t.Fatal(err)
	}
	cy, err := Compute("centroid_y", m)
	if err != nil {
		t.Fatal(err)
	}
	if cx != 4.5 || cy != 2.5 {
		t.Errorf("centroid = (%v, %v), want (4.5, 2.5)", cx, cy)
	}
}

func TestCompactnessOfSquare(t *testing.T) {
	m := square(20, 20, 5, 5, 8)
	got, err := Compute("compactness", m)
	if err != nil {
		t.Fatal(err)
	}
	// 4πA/P² for a filled square: below 1, above 0.
	if got <= 0 || got >= 1.2 {
		t.Errorf("compactness = %v, want a small positive ratio", got)
	}
}

func TestEmptyMaskFeatures(t *testing.T) {
	m := raster.NewMask(5, 5)
	for _, name := range Names() {
		got, err := Compute(name, m)
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("%s over an empty mask = %v, want finite", name, got)
		}
		if name != "value_std" && got != 0 {
			t.Errorf("%s over an empty mask = %v, want 0", name, got)
		}
	}
}
