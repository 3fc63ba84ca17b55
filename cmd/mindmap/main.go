package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// Globals are flags shared by every command.
type Globals struct {
	Debug  bool   `env:"MINDMAP_DEBUG" help:"Enable debug logging."`
	Config string `env:"MINDMAP_CONFIG" type:"path" help:"Config file (default ~/.config/mindmap/config)."`
}

type CLI struct {
	Globals

	Tags      TagsCmd      `cmd:"" help:"Suggest tags for a thought."`
	Cluster   ClusterCmd   `cmd:"" help:"Group items into relevance clusters."`
	Hierarchy HierarchyCmd `cmd:"" help:"Arrange items into a leveled mind map."`
	Audit     AuditCmd     `cmd:"" help:"Show recorded classifier outcomes."`
	MCP       MCPCmd       `cmd:"" name:"mcp" help:"Serve the mindmap tools over MCP (stdio)."`
}

// exitError makes main exit with a specific status without printing usage.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	cli := CLI{}
	parser, err := kong.New(&cli,
		kong.Name("mindmap"),
		kong.Description("Organize free-text thoughts into clusters and a mind map using an LLM classifier."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			os.Exit(code)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mindmap: %v\n", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	setupLogger(cli.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(&cli.Globals)

	err = kctx.Run()
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintf(os.Stderr, "mindmap: %s\n", ee.msg)
		}
		stop()
		os.Exit(ee.code)
	}
	kctx.FatalIfErrorf(err)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// setupFileLogger redirects slog to a file at debug level. The MCP server
// owns stdout, so it logs here instead.
func setupFileLogger(path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		slog.Warn("failed to open log file, keeping stderr", "path", path, "error", err)
		return
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)
}
