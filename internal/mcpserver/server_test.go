package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/circle/internal/feedservice"
	"github.com/starford/circle/internal/host"
	"github.com/starford/circle/internal/pipeline"
	"github.com/starford/circle/internal/roster"
	"github.com/starford/circle/internal/scheduler"
	"github.com/starford/circle/internal/sse"
	"github.com/starford/circle/internal/testutil"
)

type stubGen struct {
	response string
}

func (g *stubGen) Generate(context.Context, string, int) (string, error) {
	return g.response, nil
}

func testServer(t *testing.T) (*Server, *feedservice.Service) {
	t.Helper()
	logger := testutil.DiscardLogger()

	st := testutil.TestStore(t)
	dataDir, files := testutil.TestDataDir(t)

	card := "id: luna\nname: Luna\npersonality: 温柔\n"
	if err := os.WriteFile(filepath.Join(dataDir, "luna.yaml"), []byte(card), 0o644); err != nil {
		t.Fatal(err)
	}
	ros := roster.New(files, logger)
	if err := ros.Reload(); err != nil {
		t.Fatal(err)
	}

	broker := sse.NewBroker(0)
	t.Cleanup(broker.Close)

	gen := &stubGen{response: "窗外的雨下了一整天，我反而觉得安静。 #心情"}
	pipe := pipeline.New(gen, host.New("", "", 0, logger), st, logger)
	t.Cleanup(pipe.Wait)

	svc, err := feedservice.NewService(st, pipe, ros, broker, files, logger)
	if err != nil {
		t.Fatal(err)
	}
	sched := scheduler.New(st, pipe, ros, svc, broker, logger)
	t.Cleanup(sched.Stop)

	return New(svc, sched), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we dispatch to the
	// handler functions ourselves.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_feed":
		result, err = srv.getFeed(ctx, req)
	case "read_post":
		result, err = srv.readPost(ctx, req)
	case "create_post":
		result, err = srv.createPost(ctx, req)
	case "generate_post":
		result, err = srv.generatePost(ctx, req)
	case "get_post_contract":
		result, err = srv.getPostContract(ctx, req)
	case "scheduler_status":
		result, err = srv.schedulerStatus(ctx, req)
	case "circle_stats":
		result, err = srv.circleStats(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreatePostAndGetFeed(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_post", map[string]interface{}{
		"author_name": "You",
		"content":     "今天的云像棉花糖一样。",
		"tags":        "心情, 天气",
	})
	if r.IsError {
		t.Fatalf("create_post failed: %s", resultText(r))
	}
	if !strings.HasPrefix(resultText(r), "created post ") {
		t.Errorf("create result = %q", resultText(r))
	}

	r = callTool(t, srv, "get_feed", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "今天的云像棉花糖一样。") {
		t.Errorf("feed missing post: %s", text)
	}
	if !strings.Contains(text, "天气") {
		t.Errorf("feed missing tag: %s", text)
	}
}

func TestReadPost(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "read_post", map[string]interface{}{"id": 1})
	if !r.IsError {
		t.Error("expected error for missing post")
	}

	callTool(t, srv, "create_post", map[string]interface{}{
		"author_name": "You",
		"content":     "第一条帖子。",
	})
	r = callTool(t, srv, "read_post", map[string]interface{}{"id": 1})
	if r.IsError {
		t.Fatalf("read_post failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "第一条帖子。") {
		t.Errorf("read result = %q", resultText(r))
	}

	posts, _, err := svc.ListPosts(context.Background(), 10, 0)
	if err != nil || len(posts) != 1 {
		t.Fatalf("expected 1 stored post, got %d (err %v)", len(posts), err)
	}
}

func TestCreatePostRejectsEmptyContent(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_post", map[string]interface{}{
		"author_name": "You",
		"content":     "   ",
	})
	if !r.IsError {
		t.Error("expected error for empty content")
	}
}

func TestGeneratePost(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "generate_post", map[string]interface{}{"persona": "luna"})
	if r.IsError {
		t.Fatalf("generate_post failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"luna"`) || !strings.Contains(text, "安静") {
		t.Errorf("generated post = %q", text)
	}

	r = callTool(t, srv, "generate_post", map[string]interface{}{"persona": "nobody"})
	if !r.IsError {
		t.Error("expected error for unknown persona")
	}
}

func TestSchedulerStatusAndStats(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "scheduler_status", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"running": false`) {
		t.Errorf("status = %q", resultText(r))
	}

	callTool(t, srv, "create_post", map[string]interface{}{
		"author_name": "You",
		"content":     "用来统计的帖子。",
	})
	r = callTool(t, srv, "circle_stats", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"post_count": 1`) {
		t.Errorf("stats = %q", resultText(r))
	}
}

func TestGetPostContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_post_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Post Format Contract") {
		t.Error("contract text missing")
	}
}
