// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the papermap stages:
// papers and their enrichment, cluster categories, citation links, parse
// jobs, configuration, and the error taxonomy.
package types

// SearchResponse is the result of one end-to-end search.
type SearchResponse struct {
	// Papers is the deduplicated, enriched result set in first-seen order.
	Papers []Paper `json:"papers" yaml:"papers"`

	// Categories has one entry per distinct cluster, sorted by ID.
	Categories []Category `json:"categories" yaml:"categories"`

	// CitationLinks are reference edges whose endpoints are both in Papers.
	CitationLinks []CitationLink `json:"citation_links" yaml:"citation_links"`

	// Query is the original user query.
	Query string `json:"query" yaml:"query"`

	// ExpandedQueries lists the queries actually sent to the paper source.
	ExpandedQueries []string `json:"expanded_queries" yaml:"expanded_queries"`

	// MaxCitations is the largest CitationCount in Papers, for client-side
	// normalization.
	MaxCitations int `json:"max_citations" yaml:"max_citations"`
}

// ChatMessage is one prior turn in a chat conversation.
type ChatMessage struct {
	// Role is "user" or "assistant".
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// PaperContext is the subset of a Paper the chat composer needs.
type PaperContext struct {
	ID       string `json:"arxiv_id" yaml:"arxiv_id"`
	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`
	PDFURL   string `json:"pdf_url" yaml:"pdf_url"`
}
