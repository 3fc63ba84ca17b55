package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

func connectMCP(t *testing.T, a *app) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	ct, st := mcp.NewInMemoryTransports()
	ss, err := newMCPServer(a.engine).Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args any) string {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s returned an error result", name)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPListTools(t *testing.T) {
	cs := connectMCP(t, testApp(t, ""))
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"extract_tags", "cluster_items", "build_hierarchy"}, names)
}

func TestMCPExtractTags(t *testing.T) {
	cs := connectMCP(t, testApp(t, "health\nRunning"))
	out := callText(t, cs, "extract_tags", map[string]any{
		"content":  "go for a run",
		"existing": []string{"running"},
	})

	var tags []string
	require.NoError(t, json.Unmarshal([]byte(out), &tags))
	assert.Equal(t, []string{"health", "running"}, tags)
}

func TestMCPClusterItems(t *testing.T) {
	cs := connectMCP(t, testApp(t, "GROUP: a\nMEMBERS: 0"))
	out := callText(t, cs, "cluster_items", map[string]any{
		"items": []map[string]any{
			{"id": "x", "content": "first"},
			{"content": "second"},
		},
	})

	var clusters []mindmap.Cluster
	require.NoError(t, json.Unmarshal([]byte(out), &clusters))
	require.Len(t, clusters, 2)
	assert.Equal(t, "x", clusters[0].Members[0].ID)
	// Left out by the classifier, kept as its own cluster.
	assert.Equal(t, "1", clusters[1].Members[0].ID)
}

func TestMCPBuildHierarchyFallback(t *testing.T) {
	cs := connectMCP(t, testApp(t, ""))
	out := callText(t, cs, "build_hierarchy", map[string]any{
		"items": []map[string]any{
			{"id": "p", "content": "plan trip", "tags": []string{"travel"}},
			{"id": "q", "content": "book hotel", "tags": []string{"Travel"}},
		},
	})

	var roots []*mindmap.Node
	require.NoError(t, json.Unmarshal([]byte(out), &roots))
	require.Len(t, roots, 1)
	assert.Equal(t, "p", roots[0].Item.ID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "q", roots[0].Children[0].Item.ID)
	assert.Equal(t, 1, roots[0].Children[0].Level)
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := buildApp(context.Background(), &UserConfig{
		Classifier: ClassifierConfig{Model: "m"},
		Audit:      AuditConfig{Disable: true},
	}, mindmap.ClassifierFunc(func(context.Context, string) (string, error) {
		return "x", nil
	}), reg)
	require.NoError(t, err)
	defer a.close(context.Background())
	a.engine.ExtractTags(context.Background(), "hello world", nil)

	addr, stop, err := serveMetrics("127.0.0.1:0", reg)
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mindmap_classifier_calls_total{operation="extract_tags",result="ok"} 1`)
}
