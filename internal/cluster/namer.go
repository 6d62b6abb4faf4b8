// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cluster

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/llm"
	"github.com/pdiddy/papermap/pkg/types"
)

// RepresentativeTitles is the number of titles shown to the model per cluster.
const RepresentativeTitles = 5

var namingPromptTmpl = template.Must(template.New("naming").Parse(`Papers about "{{.Query}}" grouped by similarity. Name each cluster (2-4 words).
{{range .Clusters}}
Cluster {{.ID}} ({{.Size}} papers):
{{- range .Titles}}
  - {{.}}
{{- end}}
{{end}}
Return ONLY JSON:
{"clusters": [{"id": 0, "name": "Name", "description": "One sentence"}]}`))

type namingCluster struct {
	ID     int
	Size   int
	Titles []string
}

type namingReply struct {
	Clusters []struct {
		ID          *int   `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"clusters"`
}

// Namer labels clusters with one language-model call.
type Namer struct {
	LLM         llm.Completer
	Temperature float64
	Logger      *zap.Logger
}

// Name returns a label for every cluster id present in papers. It never
// fails: clusters the model does not name, or every cluster when the call or
// the parse fails, get PlaceholderLabel.
func (n *Namer) Name(ctx context.Context, query string, papers []types.Paper) map[int]types.ClusterLabel {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	groups := groupTitles(papers)
	labels := make(map[int]types.ClusterLabel, len(groups))
	for _, g := range groups {
		labels[g.ID] = PlaceholderLabel(g.ID)
	}
	if len(groups) == 0 || n.LLM == nil {
		return labels
	}

	var buf bytes.Buffer
	if err := namingPromptTmpl.Execute(&buf, struct {
		Query    string
		Clusters []namingCluster
	}{query, groups}); err != nil {
		logger.Warn("rendering naming prompt", zap.Error(err))
		return labels
	}

	reply, err := n.LLM.Complete(ctx, []types.ChatMessage{{Role: llm.RoleUser, Content: buf.String()}}, n.Temperature)
	if err != nil {
		logger.Warn("cluster naming failed, using placeholders", zap.Error(err))
		return labels
	}

	var parsed namingReply
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		logger.Warn("cluster naming reply not parseable, using placeholders", zap.Error(err))
		return labels
	}

	named := 0
	for _, c := range parsed.Clusters {
		if c.ID == nil || strings.TrimSpace(c.Name) == "" {
			continue
		}
		if _, ok := labels[*c.ID]; !ok {
			continue
		}
		labels[*c.ID] = types.ClusterLabel{
			Name:        strings.TrimSpace(c.Name),
			Description: strings.TrimSpace(c.Description),
		}
		named++
	}
	if named < len(groups) {
		logger.Debug("model left clusters unnamed", zap.Int("named", named), zap.Int("clusters", len(groups)))
	}
	return labels
}

// groupTitles groups papers by cluster id in ascending id order, keeping the
// first RepresentativeTitles titles of each.
func groupTitles(papers []types.Paper) []namingCluster {
	byID := make(map[int]*namingCluster)
	for _, p := range papers {
		if p.Cluster == nil {
			continue
		}
		g, ok := byID[*p.Cluster]
		if !ok {
			g = &namingCluster{ID: *p.Cluster}
			byID[*p.Cluster] = g
		}
		g.Size++
		if len(g.Titles) < RepresentativeTitles {
			g.Titles = append(g.Titles, p.Title)
		}
	}

	groups := make([]namingCluster, 0, len(byID))
	for _, g := range byID {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}
