package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cexll/asana-action/internal/config"
	"github.com/cexll/asana-action/internal/dispatcher"
	"github.com/cexll/asana-action/internal/modes"
	"github.com/cexll/asana-action/internal/taskref"
	"github.com/chainguard-dev/clog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ExtractParams is the input of extract_task_ids.
type ExtractParams struct {
	Body string `json:"body" jsonschema:"Pull request body to scan for Asana task links"`
}

// AddCommentParams is the input of add_comment.
type AddCommentParams struct {
	Body      string `json:"body" jsonschema:"Pull request body to scan for Asana task links"`
	CommentID string `json:"comment_id" jsonschema:"Key identifying the comment across runs"`
	Text      string `json:"text" jsonschema:"Comment text"`
	IsPinned  bool   `json:"is_pinned,omitempty" jsonschema:"Pin the comment to the top of the task"`
}

// RemoveCommentParams is the input of remove_comment.
type RemoveCommentParams struct {
	Body      string `json:"body" jsonschema:"Pull request body to scan for Asana task links"`
	CommentID string `json:"comment_id" jsonschema:"Key of the comment to delete"`
}

// MoveSectionParams is the input of move_section.
type MoveSectionParams struct {
	Body    string          `json:"body" jsonschema:"Pull request body to scan for Asana task links"`
	Targets []config.Target `json:"targets" jsonschema:"Project and section names to move the tasks into, applied in order"`
}

// CompleteTaskParams is the input of complete_task.
type CompleteTaskParams struct {
	Body       string `json:"body" jsonschema:"Pull request body to scan for Asana task links"`
	IsComplete bool   `json:"is_complete" jsonschema:"Completion state to set"`
}

// Handler serves the tool calls through a dispatcher.
type Handler struct {
	dispatcher *dispatcher.Dispatcher
}

// NewHandler creates a Handler.
func NewHandler(d *dispatcher.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// ExtractTaskIDs handles the extract_task_ids tool call
func (h *Handler) ExtractTaskIDs(ctx context.Context, _ *mcp.CallToolRequest, params ExtractParams) (*mcp.CallToolResult, any, error) {
	refs := taskref.Parse(params.Body)
	clog.FromContext(ctx).Infof("[MCP Asana Server] extract_task_ids found %d reference(s)", len(refs))
	return jsonResult(refs)
}

// AddComment handles the add_comment tool call
func (h *Handler) AddComment(ctx context.Context, _ *mcp.CallToolRequest, params AddCommentParams) (*mcp.CallToolResult, any, error) {
	return h.perform(ctx, &config.Config{
		Action:    string(modes.KindAddComment),
		CommentID: params.CommentID,
		Text:      params.Text,
		IsPinned:  config.Flag(params.IsPinned),
	}, params.Body)
}

// RemoveComment handles the remove_comment tool call
func (h *Handler) RemoveComment(ctx context.Context, _ *mcp.CallToolRequest, params RemoveCommentParams) (*mcp.CallToolResult, any, error) {
	return h.perform(ctx, &config.Config{
		Action:    string(modes.KindRemoveComment),
		CommentID: params.CommentID,
	}, params.Body)
}

// MoveSection handles the move_section tool call
func (h *Handler) MoveSection(ctx context.Context, _ *mcp.CallToolRequest, params MoveSectionParams) (*mcp.CallToolResult, any, error) {
	return h.perform(ctx, &config.Config{
		Action:  string(modes.KindMoveSection),
		Targets: params.Targets,
	}, params.Body)
}

// CompleteTask handles the complete_task tool call
func (h *Handler) CompleteTask(ctx context.Context, _ *mcp.CallToolRequest, params CompleteTaskParams) (*mcp.CallToolResult, any, error) {
	return h.perform(ctx, &config.Config{
		Action:     string(modes.KindCompleteTask),
		IsComplete: config.Tristate{Set: true, Value: params.IsComplete},
	}, params.Body)
}

// perform validates the inputs the same way the action does, then runs it.
// Invalid input is a protocol error; failures talking to Asana come back as
// an error result so the caller can see them.
func (h *Handler) perform(ctx context.Context, cfg *config.Config, body string) (*mcp.CallToolResult, any, error) {
	action, err := modes.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	clog.FromContext(ctx).Infof("[MCP Asana Server] Received %s request", action.Kind())
	results, err := h.dispatcher.Perform(ctx, action, body)
	if err != nil {
		clog.FromContext(ctx).Warnf("[MCP Asana Server] %s failed: %v", action.Kind(), err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)},
			},
			IsError: true,
		}, nil, nil
	}
	return jsonResult(results)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
