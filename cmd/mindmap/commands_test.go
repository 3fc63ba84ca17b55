package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoooon22/devzip-sub000/internal/audit"
	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// testApp builds an app around a canned classifier response. The audit log
// goes to a temp dir.
func testApp(t *testing.T, resp string) *app {
	t.Helper()
	cfg, err := hydrateUserConfig(map[string][]string{
		"audit.path": {filepath.Join(t.TempDir(), "audit.db")},
	})
	require.NoError(t, err)

	c := mindmap.ClassifierFunc(func(context.Context, string) (string, error) {
		if resp == "" {
			return "", errors.New("backend down")
		}
		return resp, nil
	})
	a, err := buildApp(context.Background(), cfg, c, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.close(context.Background()) })
	return a
}

const threeItems = `[
  {"id": "a", "content": "buy milk", "tags": ["errand"]},
  {"id": "b", "content": "call mom"},
  "buy milk again"
]`

func TestParseItemsJSON(t *testing.T) {
	items, err := parseItems([]byte(threeItems))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, []string{"errand"}, items[0].Tags)
	assert.Equal(t, "2", items[2].ID)
	assert.Equal(t, "buy milk again", items[2].Content)
}

func TestParseItemsYAML(t *testing.T) {
	items, err := parseItems([]byte(`
- id: x
  content: plan trip
  tags: [travel]
- pack bags
`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "x", items[0].ID)
	assert.Equal(t, "1", items[1].ID)
	assert.Equal(t, "pack bags", items[1].Content)
}

func TestParseItemsEmpty(t *testing.T) {
	items, err := parseItems([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseItemsInvalid(t *testing.T) {
	_, err := parseItems([]byte(`[{"id": 1,`))
	assert.Error(t, err)
}

func TestTagsCmd(t *testing.T) {
	a := testApp(t, "Groceries, errand")
	var out bytes.Buffer
	cmd := &TagsCmd{Text: "buy milk", Existing: []string{"groceries"}, Format: formatJSON}
	require.NoError(t, cmd.run(context.Background(), a, nil, &out))

	var tags []string
	require.NoError(t, json.Unmarshal(out.Bytes(), &tags))
	assert.Equal(t, []string{"groceries", "errand"}, tags)
}

func TestTagsCmdStdin(t *testing.T) {
	a := testApp(t, "")
	var out bytes.Buffer
	cmd := &TagsCmd{Format: formatText}
	require.NoError(t, cmd.run(context.Background(), a, strings.NewReader("Water the plants"), &out))
	assert.Equal(t, "water, the, plants\n", out.String())
}

func TestTagsCmdNoText(t *testing.T) {
	a := testApp(t, "x")
	cmd := &TagsCmd{Format: formatJSON}
	assert.Error(t, cmd.run(context.Background(), a, strings.NewReader("  "), &bytes.Buffer{}))
}

func TestClusterCmd(t *testing.T) {
	a := testApp(t, "GROUP: shopping\nMEMBERS: 0, 2\n---\nGROUP: family\nMEMBERS: 1")
	var out bytes.Buffer
	cmd := &ClusterCmd{File: "-", Format: formatJSON}
	require.NoError(t, cmd.run(context.Background(), a, strings.NewReader(threeItems), &out))

	var clusters []mindmap.Cluster
	require.NoError(t, json.Unmarshal(out.Bytes(), &clusters))
	require.Len(t, clusters, 2)
	assert.Equal(t, "shopping", clusters[0].Label)
	require.Len(t, clusters[0].Members, 2)
	assert.Equal(t, "a", clusters[0].Members[0].ID)
	assert.Equal(t, "2", clusters[0].Members[1].ID)
}

func TestClusterCmdText(t *testing.T) {
	a := testApp(t, "")
	var out bytes.Buffer
	cmd := &ClusterCmd{File: "-", Format: formatText}
	require.NoError(t, cmd.run(context.Background(), a, strings.NewReader(threeItems), &out))

	text := out.String()
	assert.Contains(t, text, "cluster-0")
	assert.Contains(t, text, "buy milk")
	assert.Contains(t, text, "call mom")
}

func TestHierarchyCmdCheckPasses(t *testing.T) {
	a := testApp(t, "INDEX: 0\nLEVEL: 0\nPARENT: -1\n---\nINDEX: 1\nLEVEL: 1\nPARENT: 0\n---\nINDEX: 2\nLEVEL: 1\nPARENT: 0")
	var out bytes.Buffer
	cmd := &HierarchyCmd{File: "-", Format: formatYAML, Check: true}
	require.NoError(t, cmd.run(context.Background(), a, strings.NewReader(threeItems), &out))
	assert.Contains(t, out.String(), "children:")
}

func TestHierarchyCmdCheckFails(t *testing.T) {
	// Item 2 is left out and comes back as a second root.
	a := testApp(t, "INDEX: 0\nLEVEL: 0\nPARENT: -1\n---\nINDEX: 1\nLEVEL: 1\nPARENT: 0")
	var out bytes.Buffer
	cmd := &HierarchyCmd{File: "-", Format: formatJSON, Check: true}
	err := cmd.run(context.Background(), a, strings.NewReader(threeItems), &out)

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.code)
	assert.Contains(t, ee.msg, "2 roots")

	var roots []*mindmap.Node
	require.NoError(t, json.Unmarshal(out.Bytes(), &roots))
	assert.Len(t, roots, 2)
}

func TestHierarchyCmdText(t *testing.T) {
	a := testApp(t, "INDEX: 0\nLEVEL: 0\nPARENT: -1\n---\nINDEX: 1\nLEVEL: 1\nPARENT: 0\n---\nINDEX: 2\nLEVEL: 2\nPARENT: 1")
	var out bytes.Buffer
	cmd := &HierarchyCmd{File: "-", Format: formatText}
	require.NoError(t, cmd.run(context.Background(), a, strings.NewReader(threeItems), &out))
	assert.Contains(t, out.String(), "buy milk again")
	assert.Contains(t, out.String(), "L2")
}

func TestAuditCmd(t *testing.T) {
	a := testApp(t, "")
	ctx := context.Background()
	(&ClusterCmd{File: "-", Format: formatJSON}).run(ctx, a, strings.NewReader(threeItems), &bytes.Buffer{})

	var out bytes.Buffer
	cmd := &AuditCmd{Limit: 5, JSON: true}
	require.NoError(t, cmd.run(ctx, a.audit, &out))

	var got struct {
		Summary []audit.OperationSummary `json:"summary"`
		Recent  []audit.Entry            `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Recent, 1)
	assert.Equal(t, "fallback", got.Recent[0].Result)
	assert.Equal(t, "backend down", got.Recent[0].Error)
	require.Len(t, got.Summary, 1)
	assert.Equal(t, 1, got.Summary[0].Fallbacks)
}

func TestAuditCmdSample(t *testing.T) {
	a := testApp(t, "")
	ctx := context.Background()
	(&TagsCmd{Text: "buy milk", Format: formatJSON}).run(ctx, a, nil, &bytes.Buffer{})

	var out bytes.Buffer
	cmd := &AuditCmd{Sample: 3, Operation: mindmap.OpTags}
	require.NoError(t, cmd.run(ctx, a.audit, &out))
	assert.Contains(t, out.String(), "extract_tags fallback")
	assert.Contains(t, out.String(), "error: backend down")
}

func TestAuditCmdTables(t *testing.T) {
	a := testApp(t, "")
	var out bytes.Buffer
	require.NoError(t, (&AuditCmd{Limit: 5}).run(context.Background(), a.audit, &out))
	assert.Contains(t, out.String(), "OPERATION")
}
