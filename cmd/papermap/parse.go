// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/papermap/pkg/types"
)

const defaultPollInterval = time.Second

var parseCmd = &cobra.Command{
	Use:   "parse <arxiv-id> [pdf-url]",
	Short: "Extract the full text of a paper PDF",
	Long: `Parse renders every page of the PDF, transcribes the pages with the vision
model and prints the text with [Page N] markers. The PDF URL defaults to
https://arxiv.org/pdf/<arxiv-id>.

With --cache set, the text is stored in SQLite and reused by later parse and
chat invocations.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().String("format", formatText, "output format: text, json or yaml")
	parseCmd.Flags().Duration("poll", defaultPollInterval, "job status poll interval")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
		return err
	}
	poll, _ := cmd.Flags().GetDuration("poll")

	id := args[0]
	url := "https://arxiv.org/pdf/" + id
	if len(args) == 2 {
		url = args[1]
	}

	ctx := context.Background()
	a, err := newApp(ctx, loadConfig(loadedSecrets), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := parseAndWait(ctx, a.jobs, id, url, poll, os.Stderr)
	if err != nil {
		return err
	}
	if ok, err := writeStructured(os.Stdout, format, snap); ok {
		return err
	}
	if snap.Status == types.JobFailed {
		return fmt.Errorf("parsing %s failed: %s", id, snap.Error)
	}
	fmt.Fprintln(os.Stdout, snap.Content)
	return nil
}

// jobRunner is the part of the parse job manager the CLI drives.
type jobRunner interface {
	Submit(ctx context.Context, documentID, sourceURL string) (types.SubmitResult, error)
	Status(ctx context.Context, jobID string) (types.JobSnapshot, error)
}

// parseTarget is one document to extract.
type parseTarget struct {
	id, url string
}

// parseAndWait submits a job and polls it until it is terminal, printing
// progress changes to status.
func parseAndWait(ctx context.Context, jobs jobRunner, id, url string, poll time.Duration, status io.Writer) (types.JobSnapshot, error) {
	snaps, err := parseAll(ctx, jobs, []parseTarget{{id, url}}, poll, status)
	if err != nil {
		return types.JobSnapshot{}, err
	}
	return snaps[0], nil
}

// parseAll submits every target before polling any of them, so the
// extractions run side by side. Snapshots come back in target order.
func parseAll(ctx context.Context, jobs jobRunner, targets []parseTarget, poll time.Duration, status io.Writer) ([]types.JobSnapshot, error) {
	snaps := make([]types.JobSnapshot, len(targets))
	pending := make(map[int]string)
	last := make(map[int]int)
	for i, t := range targets {
		res, err := jobs.Submit(ctx, t.id, t.url)
		if err != nil {
			return nil, err
		}
		if res.JobID == "" {
			fmt.Fprintf(status, "%s: cached\n", t.id)
			snaps[i] = types.JobSnapshot{
				DocumentID: t.id,
				SourceURL:  t.url,
				Status:     res.Status,
				Progress:   res.Progress,
				Content:    res.Content,
			}
			continue
		}
		pending[i] = res.JobID
		last[i] = -1
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for len(pending) > 0 {
		for i, t := range targets {
			jobID, ok := pending[i]
			if !ok {
				continue
			}
			snap, err := jobs.Status(ctx, jobID)
			if err != nil {
				return nil, err
			}
			if snap.Progress != last[i] {
				fmt.Fprintf(status, "%s: %s %d%%\n", t.id, snap.Status, snap.Progress)
				last[i] = snap.Progress
			}
			if snap.Status.Terminal() {
				snaps[i] = snap
				delete(pending, i)
			}
		}
		if len(pending) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return snaps, nil
}
