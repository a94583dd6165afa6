// Package features is the fixed catalog of feature functions the
// pipeline can compute over a pot's mask. Feature functions are pure
// functions of the mask; results are memoized by the pot handler, not
// here.
package features

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/traitcapture/timestream/internal/raster"
)

// Func computes a scalar feature from a mask.
type Func func(m *raster.Mask) float64

// All is the wildcard feature name: requesting it resolves to the full
// registered catalog.
const All = "all"

var catalog = map[string]Func{
	"area":       area,
	"perimeter":  perimeter,
	"centroid_x": centroidX,
	"centroid_y": centroidY,
	"height":     extentY,
	"width":      extentX,
	"compactness": func(m *raster.Mask) float64 {
		p := perimeter(m)
		if p == 0 {
			return 0
		}
		return 4 * 3.141592653589793 * area(m) / (p * p)
	},
	"value_mean": valueMean,
	"value_std":  valueStd,
}

// Names returns the sorted names of every registered feature.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compute dispatches to the named feature function.
func Compute(name string, m *raster.Mask) (float64, error) {
	fn, ok := catalog[name]
	if !ok {
		return 0, fmt.Errorf("unknown feature %q", name)
	}
	return fn(m), nil
}

// area counts foreground elements.
func area(m *raster.Mask) float64 {
	return float64(m.Count())
}

// perimeter counts foreground elements with at least one background
// 4-neighbour (image border counts as background).
func perimeter(m *raster.Mask) float64 {
	n := 0
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(y, x) == 0 {
				continue
			}
			if y == 0 || y == m.H-1 || x == 0 || x == m.W-1 ||
				m.At(y-1, x) == 0 || m.At(y+1, x) == 0 ||
				m.At(y, x-1) == 0 || m.At(y, x+1) == 0 {
				n++
			}
		}
	}
	return float64(n)
}

func centroidX(m *raster.Mask) float64 {
	xs, _ := foregroundCoords(m)
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func centroidY(m *raster.Mask) float64 {
	_, ys := foregroundCoords(m)
	if len(ys) == 0 {
		return 0
	}
	return stat.Mean(ys, nil)
}

func extentX(m *raster.Mask) float64 {
	minX, maxX := m.W, -1
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(y, x) != 0 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
			}
		}
	}
	if maxX < 0 {
		return 0
	}
	return float64(maxX - minX + 1)
}

func extentY(m *raster.Mask) float64 {
	minY, maxY := m.H, -1
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(y, x) != 0 {
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
				break
			}
		}
	}
	if maxY < 0 {
		return 0
	}
	return float64(maxY - minY + 1)
}

func valueMean(m *raster.Mask) float64 {
	if len(m.Data) == 0 {
		return 0
	}
	return stat.Mean(m.Data, nil)
}

func valueStd(m *raster.Mask) float64 {
	if len(m.Data) < 2 {
		return 0
	}
	return stat.StdDev(m.Data, nil)
}

func foregroundCoords(m *raster.Mask) (xs, ys []float64) {
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(y, x) != 0 {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	return xs, ys
}
