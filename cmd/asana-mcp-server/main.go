package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cexll/asana-action/internal/asana"
	"github.com/cexll/asana-action/internal/dispatcher"
	"github.com/chainguard-dev/clog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sethvargo/go-envconfig"
)

const serverVersion = "v1.0.0"

type serverConfig struct {
	AsanaPAT     string `env:"ASANA_PAT,required"`
	AsanaBaseURL string `env:"ASANA_BASE_URL"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg serverConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "[MCP Asana Server] processing config: %v", err)
	}

	tasks, err := asana.NewClient(cfg.AsanaPAT, asana.WithBaseURL(cfg.AsanaBaseURL))
	if err != nil {
		clog.FatalContextf(ctx, "[MCP Asana Server] creating Asana client: %v", err)
	}

	clog.InfoContextf(ctx, "[MCP Asana Server] Starting Asana MCP Server %s", serverVersion)
	server := newServer(NewHandler(dispatcher.New(tasks)))

	clog.InfoContextf(ctx, "[MCP Asana Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		clog.FatalContextf(ctx, "[MCP Asana Server] Server error: %v", err)
	}
	clog.InfoContextf(ctx, "[MCP Asana Server] Server stopped gracefully")
}

// newServer registers every tool on a fresh MCP server.
func newServer(h *Handler) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "asana-action",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_task_ids",
		Description: "List the Asana task links found in a pull request body, in order of appearance",
	}, h.ExtractTaskIDs)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_comment",
		Description: "Comment on every Asana task linked from the body unless a comment with the same comment_id is already there",
	}, h.AddComment)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_comment",
		Description: "Delete the comment tagged with comment_id from every Asana task linked from the body",
	}, h.RemoveComment)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_section",
		Description: "Move every Asana task linked from the body into the named section of each named project",
	}, h.MoveSection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_task",
		Description: "Mark every Asana task linked from the body complete or incomplete",
	}, h.CompleteTask)

	return server
}
