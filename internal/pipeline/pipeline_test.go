package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/models"
)

// fakeGen returns canned responses in call order, or an error.
type fakeGen struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *fakeGen) Generate(_ context.Context, prompt string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeTurns struct {
	turns []models.Turn
	err   error
}

func (f *fakeTurns) FetchRecentTurns(context.Context, string, int) ([]models.Turn, error) {
	return f.turns, f.err
}

type fakeArchive struct {
	mu        sync.Mutex
	messages  []models.RawMessage
	summaries []string
}

func (f *fakeArchive) SaveRawMessages(_ string, msgs []models.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeArchive) SaveChatSummary(_, summary string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func testPersona() models.Persona {
	return models.Persona{ID: "alice", Name: "Alice", Personality: "cheerful", Avatar: "alice.png"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func someTurns() []models.Turn {
	return []models.Turn{
		{Speaker: "User", Text: "how was your day", IsUser: true},
		{Speaker: "Alice", Text: "pretty good actually"},
	}
}

func TestGeneratePostTwoStages(t *testing.T) {
	gen := &fakeGen{responses: []string{
		"we talked about my day and it felt nice",
		"今天和他聊了很久，心里暖暖的，这种感觉真好 #开心 #想他了",
	}}
	archive := &fakeArchive{}
	p := New(gen, &fakeTurns{turns: someTurns()}, archive, testLogger())

	post, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("GeneratePostForCharacter: %v", err)
	}
	if post == nil {
		t.Fatal("expected a post")
	}
	if !post.IsAutonomous {
		t.Error("post should be autonomous")
	}
	if post.AuthorID != "alice" || post.AuthorAvatar != "alice.png" {
		t.Errorf("author fields = %q %q", post.AuthorID, post.AuthorAvatar)
	}
	if len(post.Tags) != 2 || post.Tags[0] != "开心" {
		t.Errorf("tags = %v", post.Tags)
	}
	if strings.Contains(post.Content, "#") {
		t.Errorf("tags not stripped from content: %q", post.Content)
	}

	// Both prompts were issued: summary first, then composition carrying the
	// stage-1 output.
	if len(gen.prompts) != 2 {
		t.Fatalf("generator called %d times, want 2", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[1], "we talked about my day") {
		t.Error("stage-2 prompt missing stage-1 summary")
	}

	p.Wait()
	archive.mu.Lock()
	defer archive.mu.Unlock()
	if len(archive.messages) != 2 {
		t.Errorf("archived %d raw messages, want 2", len(archive.messages))
	}
	if archive.messages[0].Role != models.RoleUser || archive.messages[1].Role != models.RoleAssistant {
		t.Errorf("archived roles = %q %q", archive.messages[0].Role, archive.messages[1].Role)
	}
	if len(archive.summaries) != 1 {
		t.Errorf("archived %d summaries, want 1", len(archive.summaries))
	}
}

func TestGeneratePostEmptyHistorySkipsSummary(t *testing.T) {
	gen := &fakeGen{responses: []string{
		"一个人安安静静的夜晚，也挺好的，适合想一些平时没空想的事 #夜晚",
	}}
	p := New(gen, &fakeTurns{}, nil, testLogger())

	post, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("GeneratePostForCharacter: %v", err)
	}
	if post == nil {
		t.Fatal("expected a post")
	}
	// Only the composition prompt: no history means no summarize call.
	if len(gen.prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "No recent chats available.") {
		t.Error("composition prompt missing empty-summary placeholder")
	}
}

func TestGeneratePostHostFailureDegrades(t *testing.T) {
	gen := &fakeGen{responses: []string{
		"即使联系不上他，我也还是会想他，想到停不下来 #想他了",
	}}
	p := New(gen, &fakeTurns{err: errors.New("host down")}, nil, testLogger())

	post, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("host failure must not fail the pipeline: %v", err)
	}
	if post == nil {
		t.Fatal("expected a post")
	}
}

func TestGeneratePostEmptyGeneration(t *testing.T) {
	gen := &fakeGen{responses: []string{"a summary", ""}}
	p := New(gen, &fakeTurns{turns: someTurns()}, nil, testLogger())

	post, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("empty generation must not error: %v", err)
	}
	if post != nil {
		t.Fatalf("post = %+v, want nil", post)
	}
}

func TestGeneratePostTooShortDiscarded(t *testing.T) {
	gen := &fakeGen{responses: []string{"a summary", "好的 #短"}}
	p := New(gen, &fakeTurns{turns: someTurns()}, nil, testLogger())

	post, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("short generation must not error: %v", err)
	}
	if post != nil {
		t.Fatalf("post = %+v, want nil", post)
	}
}

func TestGeneratePostStageTwoError(t *testing.T) {
	gen := &fakeGen{err: errors.New("rate limited")}
	p := New(gen, &fakeTurns{}, nil, testLogger())

	_, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if !errors.Is(err, apperr.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestGeneratePostKeywordFallbackTags(t *testing.T) {
	gen := &fakeGen{responses: []string{
		"a summary",
		"今天很开心，和他说了好多话，感觉整个人都轻快起来了",
	}}
	p := New(gen, &fakeTurns{turns: someTurns()}, nil, testLogger())

	post, err := p.GeneratePostForCharacter(context.Background(), testPersona())
	if err != nil {
		t.Fatalf("GeneratePostForCharacter: %v", err)
	}
	if post == nil {
		t.Fatal("expected a post")
	}
	if len(post.Tags) == 0 {
		t.Fatal("expected fallback tags")
	}
	if post.Tags[0] != "开心" {
		t.Errorf("tags = %v", post.Tags)
	}
}

func TestGenerateComment(t *testing.T) {
	gen := &fakeGen{responses: []string{"  我也有过这种感觉，抱抱你。  "}}
	p := New(gen, &fakeTurns{}, nil, testLogger())

	content, err := p.GenerateComment(context.Background(), testPersona(), &models.Post{ID: 1, AuthorName: "Bob", Content: "x"})
	if err != nil {
		t.Fatalf("GenerateComment: %v", err)
	}
	if content != "我也有过这种感觉，抱抱你。" {
		t.Errorf("content = %q", content)
	}
}

func TestGenerateCommentTooShort(t *testing.T) {
	gen := &fakeGen{responses: []string{"好的"}}
	p := New(gen, &fakeTurns{}, nil, testLogger())

	content, err := p.GenerateComment(context.Background(), testPersona(), &models.Post{ID: 1})
	if err != nil {
		t.Fatalf("GenerateComment: %v", err)
	}
	if content != "" {
		t.Errorf("content = %q, want empty", content)
	}
}
