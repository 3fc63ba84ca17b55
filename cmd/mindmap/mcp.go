package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Hoooon22/devzip-sub000/internal/metrics"
	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// MCPCmd serves the engine operations as MCP tools over stdio.
type MCPCmd struct {
	LogFile     string `type:"path" help:"Write logs to this file instead of stderr."`
	MetricsAddr string `help:"Serve Prometheus metrics on this address (overrides [metrics] listen)."`
}

type mcpItem struct {
	ID      string   `json:"id,omitempty" jsonschema:"Caller-chosen identifier, echoed back unchanged"`
	Content string   `json:"content" jsonschema:"The thought text"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Tags already attached to the thought"`
}

type extractTagsArgs struct {
	Content  string   `json:"content" jsonschema:"The thought to tag"`
	Existing []string `json:"existing,omitempty" jsonschema:"Tags already in use; reused when they fit"`
}

type itemsArgs struct {
	Items []mcpItem `json:"items" jsonschema:"The thoughts to organize"`
}

func (cmd *MCPCmd) Run(ctx context.Context, g *Globals) error {
	if cmd.LogFile != "" {
		setupFileLogger(cmd.LogFile)
	}

	path, err := configPath(g.Config)
	if err != nil {
		return err
	}
	cfg, err := loadUserConfig(path)
	if err != nil {
		return err
	}
	addr := cfg.Metrics.Listen
	if cmd.MetricsAddr != "" {
		addr = cmd.MetricsAddr
	}

	var registry *prometheus.Registry
	if addr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	a, err := buildApp(ctx, cfg, nil, registry)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if registry != nil {
		_, stop, err := serveMetrics(addr, registry)
		if err != nil {
			return err
		}
		defer stop()
	}

	slog.Debug("starting MCP server")
	return newMCPServer(a.engine).Run(ctx, &mcp.StdioTransport{})
}

func newMCPServer(engine *mindmap.Engine) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mindmap",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_tags",
		Description: "Suggest up to five short tags for a thought, reusing existing tags where they fit. Returns a JSON array of strings.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args extractTagsArgs) (*mcp.CallToolResult, any, error) {
		slog.Debug("extract_tags called", "length", len(args.Content), "existing", len(args.Existing))
		return jsonResult(engine.ExtractTags(ctx, args.Content, args.Existing))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cluster_items",
		Description: "Partition thoughts into disjoint groups of related items. Every item appears in exactly one cluster. Returns a JSON array of {id, label, members}.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args itemsArgs) (*mcp.CallToolResult, any, error) {
		slog.Debug("cluster_items called", "items", len(args.Items))
		return jsonResult(engine.Cluster(ctx, toItems(args.Items)))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_hierarchy",
		Description: "Arrange thoughts into a leveled mind-map forest. Every item appears exactly once. Returns a JSON array of root nodes {item, level, children}.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args itemsArgs) (*mcp.CallToolResult, any, error) {
		slog.Debug("build_hierarchy called", "items", len(args.Items))
		return jsonResult(engine.BuildHierarchy(ctx, toItems(args.Items)))
	})

	return server
}

func toItems(in []mcpItem) []mindmap.Item {
	items := make([]mindmap.Item, len(in))
	for i, it := range in {
		id := it.ID
		if id == "" {
			id = fmt.Sprint(i)
		}
		items[i] = mindmap.Item{ID: id, Content: it.Content, Tags: it.Tags}
	}
	return items
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// serveMetrics starts an HTTP listener for /metrics and returns its bound
// address. The returned function shuts it down.
func serveMetrics(addr string, g prometheus.Gatherer) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()
	bound := ln.Addr().String()
	slog.Info("serving metrics", "addr", bound)

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
