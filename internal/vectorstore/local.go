package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Local is a sqlite-backed VectorStore using term-frequency cosine
// similarity. No embedding service is involved; documents are reduced
// to normalized term vectors at index time. Good enough for batch
// sizes in the hundreds, which is the operating range here.
type Local struct {
	db  *sqlx.DB
	now func() time.Time
}

const localSchema = `
CREATE TABLE IF NOT EXISTS vectors (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	terms      TEXT NOT NULL,
	indexed_at TEXT NOT NULL
);
`

const maxCandidates = 2000

func OpenLocal(path string) (*Local, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init vector schema: %w", err)
	}
	return &Local{db: db, now: time.Now}, nil
}

func (l *Local) Close() error { return l.db.Close() }

func (l *Local) Add(ctx context.Context, id string, text string, metadata map[string]string) error {
	terms := termVector(text)
	if len(terms) == 0 {
		return nil
	}
	termsJSON, _ := json.Marshal(terms)
	metaJSON, _ := json.Marshal(metadata)
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vectors (id, text, metadata, terms, indexed_at) VALUES (?, ?, ?, ?, ?)`,
		id, text, string(metaJSON), string(termsJSON), l.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("vector add: %w", err)
	}
	return nil
}

func (l *Local) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	queryTerms := termVector(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	var rows []struct {
		ID       string `db:"id"`
		Text     string `db:"text"`
		Metadata string `db:"metadata"`
		Terms    string `db:"terms"`
	}
	err := l.db.SelectContext(ctx, &rows,
		`SELECT id, text, metadata, terms FROM vectors ORDER BY indexed_at DESC LIMIT ?`, maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var results []SearchResult
	for _, row := range rows {
		var terms map[string]float64
		if err := json.Unmarshal([]byte(row.Terms), &terms); err != nil {
			continue
		}
		sim := cosine(queryTerms, terms)
		if sim <= 0 {
			continue
		}
		var meta map[string]string
		_ = json.Unmarshal([]byte(row.Metadata), &meta)
		results = append(results, SearchResult{ID: row.ID, Text: row.Text, Metadata: meta, Similarity: sim})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (l *Local) DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := l.now().AddDate(0, 0, -retentionDays).Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `DELETE FROM vectors WHERE indexed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("vector retention: %w", err)
	}
	return res.RowsAffected()
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "is": true,
	"are": true, "was": true, "to": true, "of": true, "in": true, "on": true,
	"for": true, "with": true, "my": true, "i": true, "it": true, "this": true,
	"that": true, "at": true, "be": true, "has": true, "have": true, "but": true,
}

// termVector tokenizes text into lowercase alphanumeric terms and
// returns an L2-normalized frequency map.
func termVector(text string) map[string]float64 {
	counts := map[string]float64{}
	var b strings.Builder
	flush := func() {
		if b.Len() > 1 {
			term := b.String()
			if !stopwords[term] {
				counts[term]++
			}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	if len(counts) == 0 {
		return nil
	}
	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)
	for t, c := range counts {
		counts[t] = c / norm
	}
	return counts
}

// cosine of two normalized term vectors.
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, va := range a {
		if vb, ok := b[t]; ok {
			dot += va * vb
		}
	}
	return dot
}
