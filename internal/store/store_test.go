package store

import (
	"os"
	"testing"

	"github.com/starford/circle/internal/models"
)

func TestMigrateFreshDatabase(t *testing.T) {
	s := testStore(t)

	var version int
	if err := s.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Errorf("user_version = %d, want %d", version, schemaVersion)
	}
	if !s.hasIndex("idx_posts_created_at") {
		t.Error("created_at index missing after migration")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbFile, err := os.CreateTemp("", "circle-store-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePost(&models.Post{Content: "survives reopen"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(dbFile.Name())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	posts, _, err := s.GetPosts(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].Content != "survives reopen" {
		t.Fatalf("data lost across reopen: %+v", posts)
	}
}

func TestGetStats(t *testing.T) {
	s := testStore(t)

	if _, err := s.SavePost(&models.Post{Content: "p"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveProfile(models.NewProfile("luna")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChatSummary("Luna", "s", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRawMessages("Luna", []models.RawMessage{{Content: "m"}, {Content: "n"}}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	want := Stats{PostCount: 1, ProfileCount: 1, SummaryCount: 1, MessageCount: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}
