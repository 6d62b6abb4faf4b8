// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papermap/pkg/types"
)

// stubCompleter returns a canned reply and records the last prompt.
type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, messages []types.ChatMessage, _ float64) (string, error) {
	if len(messages) > 0 {
		s.prompt = messages[len(messages)-1].Content
	}
	return s.reply, s.err
}

func papersInClusters(ids ...int) []types.Paper {
	papers := make([]types.Paper, len(ids))
	for i, c := range ids {
		papers[i] = types.Paper{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Title %d", i), Cluster: types.IntPtr(c)}
	}
	return papers
}

func TestNamerParsesWrappedJSON(t *testing.T) {
	llm := &stubCompleter{reply: "Sure!\n```json\n" + `{"clusters": [
		{"id": 0, "name": " Spectral Methods ", "description": "Graph Fourier approaches."},
		{"id": 1, "name": "Message Passing", "description": "Neighborhood aggregation."}
	]}` + "\n```"}
	n := &Namer{LLM: llm}

	labels := n.Name(context.Background(), "graph neural networks", papersInClusters(0, 1, 0))
	assert.Equal(t, types.ClusterLabel{Name: "Spectral Methods", Description: "Graph Fourier approaches."}, labels[0])
	assert.Equal(t, "Message Passing", labels[1].Name)
	assert.Contains(t, llm.prompt, `Papers about "graph neural networks"`)
	assert.Contains(t, llm.prompt, "Cluster 0 (2 papers):")
}

func TestNamerFallsBackForMissingClusters(t *testing.T) {
	llm := &stubCompleter{reply: `{"clusters": [{"id": 1, "name": "Only One", "description": ""}, {"id": 9, "name": "Stray"}]}`}
	n := &Namer{LLM: llm}

	labels := n.Name(context.Background(), "q", papersInClusters(0, 1, 2))
	require.Len(t, labels, 3)
	assert.Equal(t, "Cluster 0", labels[0].Name)
	assert.Equal(t, "Only One", labels[1].Name)
	assert.Equal(t, types.ClusterLabel{Name: "Cluster 2"}, labels[2])
	_, stray := labels[9]
	assert.False(t, stray, "ids outside the result set are ignored")
}

func TestNamerNeverFails(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubCompleter
	}{
		{"llm error", &stubCompleter{err: errors.New("boom")}},
		{"not json", &stubCompleter{reply: "I cannot do that."}},
		{"malformed json", &stubCompleter{reply: `{"clusters": [{"id": "zero"}]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Namer{LLM: tt.llm}
			labels := n.Name(context.Background(), "q", papersInClusters(0, 1))
			assert.Equal(t, map[int]types.ClusterLabel{
				0: {Name: "Cluster 0"},
				1: {Name: "Cluster 1"},
			}, labels)
		})
	}
}

func TestNamerLimitsRepresentativeTitles(t *testing.T) {
	llm := &stubCompleter{reply: `{"clusters": []}`}
	n := &Namer{LLM: llm}

	n.Name(context.Background(), "q", papersInClusters(0, 0, 0, 0, 0, 0, 0))
	assert.Equal(t, RepresentativeTitles, strings.Count(llm.prompt, "  - Title"))
	assert.Contains(t, llm.prompt, "Cluster 0 (7 papers):")
	assert.NotContains(t, llm.prompt, "Title 5")
}

func TestNamerNoClusters(t *testing.T) {
	llm := &stubCompleter{}
	labels := (&Namer{LLM: llm}).Name(context.Background(), "q", []types.Paper{{ID: "x"}})
	assert.Empty(t, labels)
	assert.Empty(t, llm.prompt, "no model call without clusters")
}
