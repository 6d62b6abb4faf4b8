// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/papermap/internal/chat"
	"github.com/pdiddy/papermap/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask a question about a set of papers",
	Long: `Chat answers a question using the papers in --papers as context. The file
holds either a JSON array of {arxiv_id, title, abstract, pdf_url} objects or
the JSON output of "papermap search --format json".

Papers whose text is already cached contribute their full text. With
--parse, uncached papers are extracted first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("papers", "", "JSON file with the papers to discuss (required)")
	chatCmd.Flags().Bool("parse", false, "extract uncached papers before answering")
	chatCmd.Flags().Bool("no-web", false, "skip the web search context")
	chatCmd.Flags().String("format", formatText, "output format: text, json or yaml")
	chatCmd.MarkFlagRequired("papers")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
		return err
	}
	papersFile, _ := cmd.Flags().GetString("papers")
	parse, _ := cmd.Flags().GetBool("parse")
	noWeb, _ := cmd.Flags().GetBool("no-web")

	f, err := os.Open(papersFile)
	if err != nil {
		return fmt.Errorf("opening papers file: %w", err)
	}
	papers, err := readPapers(f)
	f.Close()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, loadConfig(loadedSecrets), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if parse {
		var targets []parseTarget
		for _, p := range papers {
			if p.PDFURL != "" {
				targets = append(targets, parseTarget{p.ID, p.PDFURL})
			}
		}
		if _, err := parseAll(ctx, a.jobs, targets, defaultPollInterval, os.Stderr); err != nil {
			return err
		}
	}

	reply, err := a.composer.Chat(ctx, chat.Request{
		Message:      strings.Join(args, " "),
		Papers:       papers,
		UseWebSearch: !noWeb,
	})
	if err != nil {
		return err
	}
	if ok, err := writeStructured(os.Stdout, format, reply); ok {
		return err
	}
	fmt.Fprintln(os.Stdout, reply.Response)
	return nil
}

// readPapers accepts a bare array of papers or a search response.
func readPapers(r io.Reader) ([]types.PaperContext, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading papers: %w", err)
	}

	var papers []types.PaperContext
	if err := json.Unmarshal(data, &papers); err != nil {
		var resp struct {
			Papers []types.PaperContext `json:"papers"`
		}
		if err2 := json.Unmarshal(data, &resp); err2 != nil {
			return nil, fmt.Errorf("parsing papers: %w", err)
		}
		papers = resp.Papers
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("%w: no papers in input", types.ErrValidation)
	}
	return papers, nil
}
