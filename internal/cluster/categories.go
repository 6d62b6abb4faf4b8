// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"fmt"
	"sort"

	"github.com/pdiddy/papermap/pkg/types"
)

// Palette holds the category display colors, indexed by cluster id mod 15.
var Palette = []string{
	"#e63946", "#f4a261", "#2a9d8f", "#264653", "#e9c46a",
	"#9b5de5", "#00bbf9", "#00f5d4", "#f15bb5", "#fee440",
	"#8338ec", "#3a86ff", "#fb5607", "#ff006e", "#8ac926",
}

// Color returns the palette color for a cluster id.
func Color(id int) string {
	if id < 0 {
		id = -id
	}
	return Palette[id%len(Palette)]
}

// PlaceholderLabel is the label used for clusters the namer could not name.
func PlaceholderLabel(id int) types.ClusterLabel {
	return types.ClusterLabel{Name: fmt.Sprintf("Cluster %d", id)}
}

// BuildCategories returns one category per distinct cluster among papers,
// sorted by id. Clusters missing from labels get the placeholder label.
func BuildCategories(papers []types.Paper, labels map[int]types.ClusterLabel) []types.Category {
	counts := make(map[int]int)
	for _, p := range papers {
		if p.Cluster != nil {
			counts[*p.Cluster]++
		}
	}

	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	categories := make([]types.Category, 0, len(ids))
	for _, id := range ids {
		label, ok := labels[id]
		if !ok {
			label = PlaceholderLabel(id)
		}
		categories = append(categories, types.Category{
			ID:          id,
			Name:        label.Name,
			Description: label.Description,
			Color:       Color(id),
			Count:       counts[id],
		})
	}
	return categories
}
