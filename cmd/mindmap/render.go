package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Hoooon22/devzip-sub000/internal/audit"
	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

const (
	formatAuto = "auto"
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	levelStyle = lipgloss.NewStyle().Faint(true)
	headStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
)

// resolveFormat turns "auto" into text on a terminal and JSON otherwise.
func resolveFormat(format string, w io.Writer) string {
	if format != formatAuto && format != "" {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return formatText
	}
	return formatJSON
}

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func renderTags(w io.Writer, format string, tags []string) error {
	format = resolveFormat(format, w)
	if format == formatText {
		_, err := fmt.Fprintln(w, strings.Join(tags, ", "))
		return err
	}
	return writeStructured(w, format, tags)
}

func renderClusters(w io.Writer, format string, clusters []mindmap.Cluster) error {
	format = resolveFormat(format, w)
	if format != formatText {
		return writeStructured(w, format, clusters)
	}

	for _, c := range clusters {
		root := c.ID
		if c.Label != "" {
			root = c.ID + " " + labelStyle.Render(c.Label)
		}
		t := tree.Root(root)
		for _, m := range c.Members {
			t.Child(itemLine(m))
		}
		if _, err := fmt.Fprintln(w, t.String()); err != nil {
			return err
		}
	}
	return nil
}

func renderForest(w io.Writer, format string, roots []*mindmap.Node) error {
	format = resolveFormat(format, w)
	if format != formatText {
		return writeStructured(w, format, roots)
	}
	for _, r := range roots {
		if _, err := fmt.Fprintln(w, nodeTree(r).String()); err != nil {
			return err
		}
	}
	return nil
}

func nodeTree(n *mindmap.Node) *tree.Tree {
	t := tree.Root(nodeLine(n))
	for _, c := range n.Children {
		if len(c.Children) == 0 {
			t.Child(nodeLine(c))
			continue
		}
		t.Child(nodeTree(c))
	}
	return t
}

func nodeLine(n *mindmap.Node) string {
	return itemLine(n.Item) + " " + levelStyle.Render(fmt.Sprintf("L%d", n.Level))
}

func itemLine(it mindmap.Item) string {
	line := it.Content
	if len(it.Tags) > 0 {
		line += " " + levelStyle.Render("#"+strings.Join(it.Tags, " #"))
	}
	return line
}

func renderSummary(w io.Writer, sums []audit.OperationSummary) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(tableStyle).
		Headers("OPERATION", "CALLS", "FALLBACK", "PARTIAL", "SKIPPED", "REPAIRED", "DISCARDED", "MEAN MS")
	for _, s := range sums {
		t.Row(s.Operation,
			fmt.Sprint(s.Calls), fmt.Sprint(s.Fallbacks), fmt.Sprint(s.Partial), fmt.Sprint(s.Skipped),
			fmt.Sprint(s.Repaired), fmt.Sprint(s.Discarded), fmt.Sprintf("%.0f", s.MeanDurationMs))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderEntries(w io.Writer, entries []audit.Entry) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(tableStyle).
		Headers("WHEN", "OPERATION", "RESULT", "ITEMS", "MS", "ERROR")
	for _, e := range entries {
		t.Row(e.CreatedAt, e.Operation, e.Result, fmt.Sprint(e.Items), fmt.Sprint(e.DurationMs), e.Error)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func tableStyle(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return headStyle
	}
	return cellStyle
}
