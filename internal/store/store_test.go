package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintel/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fintel.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndFetchUnprocessed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.AddPost(ctx, core.Document{
		Source:   "x",
		Author:   "kampala_trader",
		Text:     "MTN MoMo fees are too high",
		PostedAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("AddPost: %v", err)
	}
	if id == 0 {
		t.Fatal("expected generated id")
	}

	docs, err := s.Unprocessed(ctx, 10)
	if err != nil {
		t.Fatalf("Unprocessed: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "MTN MoMo fees are too high" {
		t.Fatalf("docs = %+v", docs)
	}

	if err := s.MarkProcessed(ctx, []int64{id}); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	docs, _ = s.Unprocessed(ctx, 10)
	if len(docs) != 0 {
		t.Fatalf("expected none unprocessed, got %d", len(docs))
	}
}

func TestUpdateDerivedRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, _ := s.AddPost(ctx, core.Document{Source: "x", Text: "airtel money coverage", PostedAt: time.Now()})
	doc := core.Document{
		ID:             id,
		CleanText:      "airtel money coverage",
		Language:       "en",
		Relevance:      0.25,
		Topics:         []string{"coverage"},
		SentimentLabel: core.SentimentPositive,
		SentimentScore: 0.8,
	}
	if err := s.UpdateDerived(ctx, doc); err != nil {
		t.Fatalf("UpdateDerived: %v", err)
	}

	docs, err := s.Unprocessed(ctx, 10)
	if err != nil {
		t.Fatalf("Unprocessed: %v", err)
	}
	got := docs[0]
	if got.Relevance != 0.25 || got.SentimentLabel != core.SentimentPositive {
		t.Fatalf("got = %+v", got)
	}
	if len(got.Topics) != 1 || got.Topics[0] != "coverage" {
		t.Fatalf("topics = %v", got.Topics)
	}
}

func TestRecentPostsWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.AddPost(ctx, core.Document{Source: "x", Text: "fresh", PostedAt: time.Now().Add(-time.Hour)})
	s.AddPost(ctx, core.Document{Source: "x", Text: "stale", PostedAt: time.Now().Add(-10 * 24 * time.Hour)})

	docs, err := s.RecentPosts(ctx, 7*24*time.Hour, 0)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "fresh" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestReportsLatestWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := core.Report{ID: "r1", GeneratedAt: time.Now().Add(-time.Hour), ExecutiveSummary: "old"}
	newer := core.Report{ID: "r2", GeneratedAt: time.Now(), ExecutiveSummary: "new", HealthScore: 6.5}
	if err := s.AddReport(ctx, older); err != nil {
		t.Fatalf("AddReport: %v", err)
	}
	if err := s.AddReport(ctx, newer); err != nil {
		t.Fatalf("AddReport: %v", err)
	}

	got, err := s.LatestReport(ctx)
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if got.ID != "r2" || got.HealthScore != 6.5 {
		t.Fatalf("got = %+v", got)
	}
}

func TestLatestReportNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestReport(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCountsAndRetention(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.AddPost(ctx, core.Document{Source: "x", Text: "recent", PostedAt: time.Now()})
	s.AddPost(ctx, core.Document{Source: "x", Text: "ancient", PostedAt: time.Now().Add(-100 * 24 * time.Hour)})
	s.AddMention(ctx, Mention{Competitor: "MTN MoMo", Sentiment: core.SentimentNegative, Context: "fees"})
	s.AddInsight(ctx, core.Insight{Type: "trending_topic", Text: "fees trending", Stage: "social"})

	c, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if c.Posts != 2 || c.Insights != 1 || c.Mentions != 1 {
		t.Fatalf("counts = %+v", c)
	}

	deleted, err := s.DeleteOlderThan(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	c, _ = s.Count(ctx)
	if c.Posts != 1 {
		t.Fatalf("posts after retention = %d", c.Posts)
	}
}
