// Package store persists posts, competitor mentions, insights, and
// reports in sqlite. Pipeline stages treat persistence as best-effort:
// callers log failures and keep going, so nothing here is on a run's
// critical path except the initial fetch.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"fintel/internal/core"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	source          TEXT NOT NULL,
	author          TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL,
	clean_content   TEXT NOT NULL DEFAULT '',
	language        TEXT NOT NULL DEFAULT '',
	posted_at       TEXT NOT NULL,
	sentiment_label TEXT NOT NULL DEFAULT '',
	sentiment_score REAL NOT NULL DEFAULT 0,
	relevance_score REAL NOT NULL DEFAULT 0,
	topics          TEXT NOT NULL DEFAULT '[]',
	processed       INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_processed ON posts(processed);
CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at);

CREATE TABLE IF NOT EXISTS competitor_mentions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	competitor TEXT NOT NULL,
	post_id    INTEGER NOT NULL DEFAULT 0,
	sentiment  TEXT NOT NULL DEFAULT '',
	context    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mentions_competitor ON competitor_mentions(competitor);

CREATE TABLE IF NOT EXISTS insights (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	type       TEXT NOT NULL,
	content    TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	evidence   TEXT NOT NULL DEFAULT '',
	topic      TEXT NOT NULL DEFAULT '',
	sentiment  TEXT NOT NULL DEFAULT '',
	stage      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	payload      TEXT NOT NULL,
	health_score REAL NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0,
	degraded     INTEGER NOT NULL DEFAULT 0
);
`

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type postRow struct {
	ID             int64   `db:"id"`
	Source         string  `db:"source"`
	Author         string  `db:"author"`
	URL            string  `db:"url"`
	Content        string  `db:"content"`
	CleanContent   string  `db:"clean_content"`
	Language       string  `db:"language"`
	PostedAt       string  `db:"posted_at"`
	SentimentLabel string  `db:"sentiment_label"`
	SentimentScore float64 `db:"sentiment_score"`
	RelevanceScore float64 `db:"relevance_score"`
	Topics         string  `db:"topics"`
	Processed      bool    `db:"processed"`
	CreatedAt      string  `db:"created_at"`
}

func (r postRow) document() core.Document {
	doc := core.Document{
		ID:             r.ID,
		Source:         r.Source,
		Author:         r.Author,
		URL:            r.URL,
		Text:           r.Content,
		CleanText:      r.CleanContent,
		Language:       r.Language,
		SentimentLabel: core.Sentiment(r.SentimentLabel),
		SentimentScore: r.SentimentScore,
		Relevance:      r.RelevanceScore,
		Processed:      r.Processed,
	}
	if ts, err := time.Parse(time.RFC3339Nano, r.PostedAt); err == nil {
		doc.PostedAt = ts
	}
	_ = json.Unmarshal([]byte(r.Topics), &doc.Topics)
	return doc
}

func (s *Store) AddPost(ctx context.Context, doc core.Document) (int64, error) {
	topics, _ := json.Marshal(doc.Topics)
	postedAt := doc.PostedAt
	if postedAt.IsZero() {
		postedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (source, author, url, content, clean_content, language, posted_at,
			sentiment_label, sentiment_score, relevance_score, topics, processed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Source, doc.Author, doc.URL, doc.Text, doc.CleanText, doc.Language,
		postedAt.Format(time.RFC3339Nano), string(doc.SentimentLabel), doc.SentimentScore,
		doc.Relevance, string(topics), doc.Processed, s.now().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("add post: %w", err)
	}
	return res.LastInsertId()
}

// Unprocessed returns posts not yet run through preprocessing, oldest
// first.
func (s *Store) Unprocessed(ctx context.Context, limit int) ([]core.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM posts WHERE processed = 0 ORDER BY posted_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("unprocessed posts: %w", err)
	}
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (s *Store) RecentPosts(ctx context.Context, since time.Duration, limit int) ([]core.Document, error) {
	if limit <= 0 {
		limit = 200
	}
	cutoff := s.now().Add(-since).Format(time.RFC3339Nano)
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM posts WHERE posted_at >= ? ORDER BY posted_at DESC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (s *Store) MarkProcessed(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `UPDATE posts SET processed = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark processed %d: %w", id, err)
		}
	}
	return nil
}

func (s *Store) UpdateDerived(ctx context.Context, doc core.Document) error {
	topics, _ := json.Marshal(doc.Topics)
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET clean_content = ?, language = ?, relevance_score = ?, topics = ?,
			sentiment_label = ?, sentiment_score = ? WHERE id = ?`,
		doc.CleanText, doc.Language, doc.Relevance, string(topics),
		string(doc.SentimentLabel), doc.SentimentScore, doc.ID)
	if err != nil {
		return fmt.Errorf("update derived %d: %w", doc.ID, err)
	}
	return nil
}

type Mention struct {
	Competitor string
	PostID     int64
	Sentiment  core.Sentiment
	Context    string
}

func (s *Store) AddMention(ctx context.Context, m Mention) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO competitor_mentions (competitor, post_id, sentiment, context, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.Competitor, m.PostID, string(m.Sentiment), m.Context, s.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add mention: %w", err)
	}
	return nil
}

func (s *Store) AddInsight(ctx context.Context, in core.Insight) error {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (type, content, confidence, evidence, topic, sentiment, stage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Type, in.Text, in.Confidence, in.Evidence, in.Topic, string(in.Sentiment),
		in.Stage, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add insight: %w", err)
	}
	return nil
}

func (s *Store) AddReport(ctx context.Context, rep core.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (id, generated_at, payload, health_score, confidence, degraded)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.GeneratedAt.Format(time.RFC3339Nano), string(payload),
		rep.HealthScore, rep.Confidence, rep.Degraded)
	if err != nil {
		return fmt.Errorf("add report: %w", err)
	}
	return nil
}

func (s *Store) LatestReport(ctx context.Context) (core.Report, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM reports ORDER BY generated_at DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Report{}, ErrNotFound
		}
		return core.Report{}, fmt.Errorf("latest report: %w", err)
	}
	var rep core.Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return core.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return rep, nil
}

type Counts struct {
	Posts       int64
	Unprocessed int64
	Mentions    int64
	Insights    int64
	Reports     int64
}

func (s *Store) Count(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		dst *int64
		q   string
	}{
		{&c.Posts, `SELECT COUNT(*) FROM posts`},
		{&c.Unprocessed, `SELECT COUNT(*) FROM posts WHERE processed = 0`},
		{&c.Mentions, `SELECT COUNT(*) FROM competitor_mentions`},
		{&c.Insights, `SELECT COUNT(*) FROM insights`},
		{&c.Reports, `SELECT COUNT(*) FROM reports`},
	}
	for _, q := range queries {
		if err := s.db.GetContext(ctx, q.dst, q.q); err != nil {
			return c, fmt.Errorf("count: %w", err)
		}
	}
	return c, nil
}

// DeleteOlderThan enforces the data retention window over posts and
// mentions. Reports are kept.
func (s *Store) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).Format(time.RFC3339Nano)
	var deleted int64
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE posted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention posts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		deleted += n
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM competitor_mentions WHERE created_at < ?`, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("retention mentions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		deleted += n
	}
	return deleted, nil
}
