// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/papermap/pkg/types"
)

// Point is a 2D projected position.
type Point struct {
	X, Y float64
}

// ProjectTo2D projects vectors onto their two leading principal components
// and scales the result so the largest absolute coordinate is 1. Fewer than
// two vectors project to the origin.
func ProjectTo2D(vectors [][]float64) ([]Point, error) {
	n := len(vectors)
	points := make([]Point, n)
	if n < 2 {
		return points, nil
	}
	d := len(vectors[0])

	data := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", types.ErrValidation, i, len(v), d)
		}
		data.SetRow(i, v)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, fmt.Errorf("principal component decomposition failed for %d vectors", n)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, components := vecs.Dims()

	mean := make([]float64, d)
	for j := range d {
		mean[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	var maxAbs float64
	centered := make([]float64, d)
	for i, v := range vectors {
		for j := range d {
			centered[j] = v[j] - mean[j]
		}
		var p Point
		if components > 0 {
			p.X = mat.Dot(mat.NewVecDense(d, centered), vecs.ColView(0))
		}
		if components > 1 {
			p.Y = mat.Dot(mat.NewVecDense(d, centered), vecs.ColView(1))
		}
		points[i] = p
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}

	if maxAbs == 0 {
		return points, nil
	}
	for i := range points {
		points[i].X /= maxAbs
		points[i].Y /= maxAbs
	}
	return points, nil
}
