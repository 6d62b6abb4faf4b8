// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/papermap/pkg/types"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatText  = "text"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// writeStructured writes v as JSON or YAML. It reports false for any other
// format so the caller can fall back to its human-readable form.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(allowed, ", "))
}

// writeSearchTable prints the categories then one row per paper.
func writeSearchTable(w io.Writer, resp *types.SearchResponse) error {
	fmt.Fprintf(w, "Query: %s\n", resp.Query)
	fmt.Fprintf(w, "Expanded: %s\n", strings.Join(resp.ExpandedQueries, " | "))
	fmt.Fprintf(w, "%d papers, %d citation links\n\n", len(resp.Papers), len(resp.CitationLinks))

	if len(resp.Categories) > 0 {
		fmt.Fprintln(w, "Categories:")
		for _, c := range resp.Categories {
			fmt.Fprintf(w, "  [%d] %s (%d papers)", c.ID, c.Name, c.Count)
			if c.Description != "" {
				fmt.Fprintf(w, ": %s", c.Description)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLUSTER\tCITED BY\tTITLE")
	for _, p := range resp.Papers {
		clusterName := "-"
		if p.ClusterName != nil {
			clusterName = *p.ClusterName
		}
		cited := "-"
		if p.CitationCount != nil {
			cited = fmt.Sprint(*p.CitationCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, clusterName, cited, p.Title)
	}
	return tw.Flush()
}
