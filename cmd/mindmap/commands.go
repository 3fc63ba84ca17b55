package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Hoooon22/devzip-sub000/internal/audit"
	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// TagsCmd suggests tags for one thought.
type TagsCmd struct {
	Text     string   `arg:"" optional:"" help:"Thought text (read from stdin when omitted)."`
	Existing []string `help:"Tags already in use, preferred when they fit."`
	Format   string   `enum:"auto,json,yaml,text" default:"auto" help:"Output format."`
}

func (cmd *TagsCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, nil)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	return cmd.run(ctx, a, stdin, stdout)
}

func (cmd *TagsCmd) run(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	text := cmd.Text
	if text == "" {
		data, err := readInput("-", in)
		if err != nil {
			return err
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("no text given")
	}
	return renderTags(out, cmd.Format, a.engine.ExtractTags(ctx, text, cmd.Existing))
}

// ClusterCmd groups a list of items.
type ClusterCmd struct {
	File   string `arg:"" optional:"" default:"-" help:"JSON or YAML item list ('-' for stdin)."`
	Format string `enum:"auto,json,yaml,text" default:"auto" help:"Output format."`
}

func (cmd *ClusterCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, nil)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	return cmd.run(ctx, a, stdin, stdout)
}

func (cmd *ClusterCmd) run(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	items, err := loadItems(cmd.File, in)
	if err != nil {
		return err
	}
	return renderClusters(out, cmd.Format, a.engine.Cluster(ctx, items))
}

// HierarchyCmd arranges a list of items into a mind map.
type HierarchyCmd struct {
	File   string `arg:"" optional:"" default:"-" help:"JSON or YAML item list ('-' for stdin)."`
	Format string `enum:"auto,json,yaml,text" default:"auto" help:"Output format."`
	Check  bool   `help:"Exit with status 2 unless the result is a single, level-consistent tree."`
}

func (cmd *HierarchyCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, nil)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	return cmd.run(ctx, a, stdin, stdout)
}

func (cmd *HierarchyCmd) run(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	items, err := loadItems(cmd.File, in)
	if err != nil {
		return err
	}
	roots := a.engine.BuildHierarchy(ctx, items)
	if err := renderForest(out, cmd.Format, roots); err != nil {
		return err
	}
	if !cmd.Check || len(items) == 0 {
		return nil
	}
	if report := mindmap.Inspect(roots); !report.OK() {
		return &exitError{code: 2, msg: "hierarchy check: " + strings.Join(report.Problems(), "; ")}
	}
	return nil
}

// AuditCmd prints the recorded classifier outcomes.
type AuditCmd struct {
	Limit     int    `default:"20" help:"Number of recent entries to list."`
	Sample    int    `help:"Instead of the latest entries, list this many fallback or partial entries, favoring recent ones."`
	Operation string `help:"Restrict --sample to one operation (extract_tags, cluster, hierarchy)."`
	JSON      bool   `help:"Print JSON instead of tables."`
}

func (cmd *AuditCmd) Run(ctx context.Context, g *Globals) error {
	path, err := configPath(g.Config)
	if err != nil {
		return err
	}
	cfg, err := loadUserConfig(path)
	if err != nil {
		return err
	}
	if cfg.Audit.Disable {
		return errors.New("audit log is disabled in the config")
	}
	dbPath, err := cfg.auditPath()
	if err != nil {
		return err
	}
	store, err := audit.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return cmd.run(ctx, store, stdout)
}

func (cmd *AuditCmd) run(ctx context.Context, store *audit.Store, out io.Writer) error {
	var (
		entries []audit.Entry
		err     error
	)
	if cmd.Sample > 0 {
		entries, err = store.Sample(ctx, cmd.Operation, cmd.Sample)
	} else {
		entries, err = store.Recent(ctx, cmd.Limit)
	}
	if err != nil {
		return err
	}

	if cmd.Sample > 0 {
		if cmd.JSON {
			return writeStructured(out, formatJSON, entries)
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s %s %s (%d items, %d discarded, %d repaired)\n",
				e.CreatedAt, e.Operation, e.Result, e.Items, e.Discarded, e.Repaired)
			if e.Error != "" {
				fmt.Fprintf(out, "  error: %s\n", e.Error)
			}
			if e.Raw != "" {
				fmt.Fprintf(out, "  response: %s\n", e.Raw)
			}
		}
		return nil
	}

	sums, err := store.Summary(ctx)
	if err != nil {
		return err
	}
	if cmd.JSON {
		return writeStructured(out, formatJSON, map[string]any{"summary": sums, "recent": entries})
	}
	if err := renderSummary(out, sums); err != nil {
		return err
	}
	return renderEntries(out, entries)
}

func loadItems(path string, in io.Reader) ([]mindmap.Item, error) {
	data, err := readInput(path, in)
	if err != nil {
		return nil, err
	}
	return parseItems(data)
}
