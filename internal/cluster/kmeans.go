// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cluster implements the pure computations run over a result set's
// embeddings (k-means labels, a 2D PCA projection, a cosine nearest-neighbor
// graph) plus category building and LLM cluster naming.
package cluster

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/pdiddy/papermap/pkg/types"
)

// MaxIterations caps Lloyd's algorithm.
const MaxIterations = 100

// Cluster count bounds.
const (
	MinClusters      = 3
	MaxClusters      = 8
	papersPerCluster = 20
)

// Count derives the cluster count for n papers: n/20 clamped to [3, 8].
// Callers with fewer than Count(n) vectors must lower k to n themselves.
func Count(n int) int {
	return min(MaxClusters, max(MinClusters, n/papersPerCluster))
}

// CheckDimensions returns types.ErrValidation unless every vector has the
// same, nonzero dimension.
func CheckDimensions(vectors [][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	d := len(vectors[0])
	if d == 0 {
		return fmt.Errorf("%w: empty vectors", types.ErrValidation)
	}
	for i, v := range vectors {
		if len(v) != d {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", types.ErrValidation, i, len(v), d)
		}
	}
	return nil
}

// AssignClusters runs k-means over vectors and returns one label in [0, k)
// per vector. Initial centroids are k distinct input vectors drawn with rng;
// a nil rng uses the global source.
func AssignClusters(vectors [][]float64, k int, rng *rand.Rand) ([]int, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: cluster count must be positive, got %d", types.ErrValidation, k)
	}
	if len(vectors) < k {
		return nil, fmt.Errorf("%w: %d vectors for %d clusters", types.ErrInsufficientData, len(vectors), k)
	}
	if err := CheckDimensions(vectors); err != nil {
		return nil, err
	}

	perm := rand.Perm
	if rng != nil {
		perm = rng.Perm
	}

	centroids := make([][]float64, k)
	for c, idx := range perm(len(vectors))[:k] {
		centroids[c] = append([]float64(nil), vectors[idx]...)
	}

	// -1 so the first pass always counts as a change.
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < MaxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			nearest := nearestCentroid(v, centroids)
			if nearest != labels[i] {
				labels[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(vectors, labels, centroids)
	}
	return labels, nil
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best, bestDist := 0, floats.Distance(v, centroids[0], 2)
	for c := 1; c < len(centroids); c++ {
		if d := floats.Distance(v, centroids[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// updateCentroids moves each centroid to the mean of its members. A centroid
// with no members keeps its previous position.
func updateCentroids(vectors [][]float64, labels []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		floats.Add(sums[labels[i]], v)
		counts[labels[i]]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		centroids[c] = sums[c]
	}
}
