// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search arXiv and map the results",
	Long: `Search expands the query into complementary arXiv queries, fetches and
deduplicates the results, then clusters, projects and names them and links
papers that cite each other. Output is a table, JSON or YAML.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of papers (default 200)")
	searchCmd.Flags().String("format", formatTable, "output format: table, json or yaml")
	viper.BindPFlag("search.max_results", searchCmd.Flags().Lookup("max-results"))

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	cfg := loadConfig(loadedSecrets)
	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	a.pipeline.OnStage = func(s search.Stage) {
		fmt.Fprintf(os.Stderr, "%s...\n", s)
	}
	return doSearch(ctx, a.pipeline, strings.Join(args, " "), cfg.Search.MaxResults, format, os.Stdout)
}

func doSearch(ctx context.Context, p *search.Pipeline, query string, maxResults int, format string, w io.Writer) error {
	resp, err := p.Run(ctx, query, maxResults)
	if err != nil {
		return err
	}
	logger.Debug("search finished", zap.Int("papers", len(resp.Papers)))

	if ok, err := writeStructured(w, format, resp); ok {
		return err
	}
	return writeSearchTable(w, resp)
}
