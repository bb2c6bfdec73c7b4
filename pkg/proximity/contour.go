package proximity

import (
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
)

// Contour extracts the iso-line where a per-vertex scalar field crosses
// value, by marching triangles. A vertex counts as below when its scalar is
// strictly less than value, which matches the colour ramp. Crossing points
// on a shared edge are emitted once so segments join into polylines.
func Contour(mesh *models.TriangleMesh, scalars []float64, value float64) *models.PolyLine {
	line := &models.PolyLine{}
	if mesh.IsEmpty() || len(scalars) != mesh.NumPoints() {
		return line
	}

	type edge struct{ a, b int }
	crossings := make(map[edge]int)
	cross := func(a, b int) int {
		if a > b {
			a, b = b, a
		}
		key := edge{a, b}
		if k, ok := crossings[key]; ok {
			return k
		}
		sa, sb := scalars[a], scalars[b]
		t := (value - sa) / (sb - sa)
		p := r3.Add(mesh.Points[a], r3.Scale(t, r3.Sub(mesh.Points[b], mesh.Points[a])))
		line.Points = append(line.Points, p)
		crossings[key] = len(line.Points) - 1
		return crossings[key]
	}

	for _, tri := range mesh.Triangles {
		var below [3]bool
		n := 0
		for k, v := range tri {
			if scalars[v] < value {
				below[k] = true
				n++
			}
		}
		if n == 0 || n == 3 {
			continue
		}
		// the odd vertex is the one alone on its side
		odd := 0
		for k := 0; k < 3; k++ {
			if below[k] == (n == 1) {
				odd = k
				break
			}
		}
		o := tri[odd]
		p := tri[(odd+1)%3]
		q := tri[(odd+2)%3]
		line.Lines = append(line.Lines, [2]int{cross(o, p), cross(o, q)})
	}
	return line
}
