// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// normEpsilon keeps zero vectors from dividing by zero.
const normEpsilon = 1e-10

// NearestNeighbors returns, for each vector, the indices of the n most
// cosine-similar other vectors in descending similarity. Ties go to the lower
// index. Each row has min(n, len(vectors)-1) entries.
func NearestNeighbors(vectors [][]float64, n int) [][]int {
	normalized := make([][]float64, len(vectors))
	for i, v := range vectors {
		u := append([]float64(nil), v...)
		floats.Scale(1/(floats.Norm(u, 2)+normEpsilon), u)
		normalized[i] = u
	}

	want := max(0, min(n, len(vectors)-1))
	out := make([][]int, len(vectors))
	sims := make([]float64, len(vectors))
	for i := range normalized {
		candidates := make([]int, 0, len(vectors)-1)
		for j := range normalized {
			if j == i {
				continue
			}
			sims[j] = floats.Dot(normalized[i], normalized[j])
			candidates = append(candidates, j)
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return sims[candidates[a]] > sims[candidates[b]]
		})
		out[i] = candidates[:want]
	}
	return out
}
