// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// MaxAuthors bounds the author list kept per paper.
const MaxAuthors = 5

// Paper is a candidate paper returned by the paper source and enriched in
// place as the search pipeline progresses. The optional fields are nil until
// the stage that owns them has run.
type Paper struct {
	// ID is the arXiv identifier as reported by the source, version suffix
	// included (e.g. "1706.03762v7"). Unique within one result set.
	ID string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is the paper title with line breaks collapsed.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract with line breaks collapsed.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists at most MaxAuthors authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Published is the first-version publication date.
	Published time.Time `json:"published" yaml:"published"`

	// PDFURL points at the full-text PDF.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// Categories are the source's subject tags (e.g. "cs.LG").
	Categories []string `json:"categories" yaml:"categories"`

	// Cluster is the k-means label assigned during clustering.
	Cluster *int `json:"cluster,omitempty" yaml:"cluster,omitempty"`

	// ClusterName is the display name of Cluster after naming.
	ClusterName *string `json:"cluster_name,omitempty" yaml:"cluster_name,omitempty"`

	// X and Y are the 2D projection coordinates, each in [-1, 1].
	X *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y *float64 `json:"y,omitempty" yaml:"y,omitempty"`

	// Neighbors holds the IDs of the most similar papers in the set.
	Neighbors []string `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`

	// CitationCount is the total citation count reported by the citation provider.
	CitationCount *int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`

	// References lists IDs from the same result set that this paper cites.
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// Category summarizes one cluster after naming.
type Category struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Color       string `json:"color" yaml:"color"`
	Count       int    `json:"count" yaml:"count"`
}

// CitationLink is a directed edge: Source cites Target. Both endpoints
// belong to the result set the link was built for.
type CitationLink struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// CitationRecord is the per-paper outcome of citation resolution. The zero
// value means the provider had nothing for the paper.
type CitationRecord struct {
	CitationCount int      `json:"citation_count" yaml:"citation_count"`
	References    []string `json:"references" yaml:"references"`
}

// ClusterLabel is the name and description assigned to one cluster.
type ClusterLabel struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
