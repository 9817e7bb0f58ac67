// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Circle tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/feedservice"
	"github.com/starford/circle/internal/models"
	"github.com/starford/circle/internal/scheduler"
)

const defaultFeedLimit = 20

// Server wraps the MCP server with Circle tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *feedservice.Service
	sched *scheduler.Scheduler
}

// New creates a new MCP server with all Circle tools registered.
func New(svc *feedservice.Service, sched *scheduler.Scheduler) *Server {
	s := &Server{svc: svc, sched: sched}

	s.mcp = server.NewMCPServer(
		"Circle",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_feed",
		mcp.WithDescription("Read one page of the feed, newest posts first."),
		mcp.WithNumber("limit", mcp.Description("Maximum posts to return (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Posts to skip from the top of the feed")),
	), s.getFeed)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read one post with its comments and interaction counters."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Numeric post id")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Publish a user-side post to the feed. "+
			"Content MUST follow the post format contract (plain text content, "+
			"tags passed separately without # marks). Read the contract first via "+
			"the get_post_contract tool or the circle://post-format resource."),
		mcp.WithString("author_name", mcp.Required(), mcp.Description("Display name of the author")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Plain text post content, no hashtags")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags without # marks")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("generate_post",
		mcp.WithDescription("Ask a persona to write and publish a post in its own voice right now, "+
			"bypassing the scheduler gates. The persona may decide there is nothing to say."),
		mcp.WithString("persona", mcp.Required(), mcp.Description("Persona id from the roster")),
	), s.generatePost)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the post format contract. "+
			"Call this before creating posts to ensure correct structure."),
	), s.getPostContract)

	s.mcp.AddTool(mcp.NewTool("scheduler_status",
		mcp.WithDescription("Report whether the autonomous posting loops are running."),
	), s.schedulerStatus)

	s.mcp.AddTool(mcp.NewTool("circle_stats",
		mcp.WithDescription("Per-collection record counts for diagnostics."),
	), s.circleStats)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource("circle://post-format", "Post Format Contract",
			mcp.WithResourceDescription("Post conventions that all posts created over MCP must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultFeedLimit)
	offset := req.GetInt("offset", 0)

	posts, hasMore, err := s.svc.ListPosts(ctx, limit, offset)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"posts":    posts,
		"has_more": hasMore,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GetPost(ctx, int64(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("post not found: %d", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(post, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	authorName, err := req.RequireString("author_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content is empty"), nil
	}

	var tags []string
	for _, tag := range strings.Split(req.GetString("tags", ""), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	post := &models.Post{
		AuthorID:   "user",
		AuthorName: authorName,
		Content:    content,
		Tags:       tags,
	}
	id, err := s.svc.CreatePost(ctx, post)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created post %d", id)), nil
}

func (s *Server) generatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	personaID, err := req.RequireString("persona")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GeneratePost(ctx, personaID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown persona: %s", personaID)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if post == nil {
		return mcp.NewToolResultText("nothing to publish"), nil
	}
	out, _ := json.MarshalIndent(post, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) schedulerStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.sched.Status(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) circleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "circle://post-format",
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
