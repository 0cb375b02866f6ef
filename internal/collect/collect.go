// Package collect abstracts where pipeline input comes from. Production
// runs read unprocessed posts from the relational store; the sample
// source provides a canned batch so a run on an empty database still
// produces a report.
package collect

import (
	"context"
	"time"

	"fintel/internal/core"
	"fintel/internal/store"
)

// DocumentSource produces a batch of raw documents for one run.
type DocumentSource interface {
	Fetch(ctx context.Context, limit int) ([]core.Document, error)
}

// StoreSource reads unprocessed posts from the relational store.
type StoreSource struct {
	Store *store.Store
}

func (s *StoreSource) Fetch(ctx context.Context, limit int) ([]core.Document, error) {
	return s.Store.Unprocessed(ctx, limit)
}

// SampleSource serves the built-in demo batch.
type SampleSource struct {
	now func() time.Time
}

func NewSampleSource() *SampleSource { return &SampleSource{now: time.Now} }

func (s *SampleSource) Fetch(_ context.Context, limit int) ([]core.Document, error) {
	docs := SamplePosts(s.now())
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// SamplePosts is the canned Uganda fintech batch, timestamped relative
// to now so trend windows always see them.
func SamplePosts(now time.Time) []core.Document {
	posts := []struct {
		source, author, text string
		ageHours             int
	}{
		{"x", "kampala_trader", "MTN MoMo fees are too high for small businesses. We need better rates!", 2},
		{"x", "mukono_farmer", "Airtel Money network coverage is so much better than MTN upcountry. Switched last month.", 5},
		{"reddit", "ug_fintech_watcher", "Bank of Uganda announced new agent banking regulations today. Big implications for mobile money operators.", 8},
		{"x", "gulu_entrepreneur", "Just got a loan through my mobile money account in 5 minutes. Digital lending is changing everything.", 12},
		{"x", "jinja_boda", "Lost money again to a failed MoMo transaction. Third time this month and support never responds.", 18},
		{"reddit", "diaspora_ug", "Sending remittances home via mobile money is finally cheaper than Western Union. Great for the diaspora.", 24},
		{"x", "mbarara_sacco", "Our sacco now accepts deposits via Airtel Money. Members love the convenience of digital savings.", 30},
		{"x", "ntinda_shopkeeper", "Agent banking has brought Centenary services to our trading centre. No more travelling to town.", 40},
		{"reddit", "fintech_skeptic_ug", "Mobile money agent float shortages are getting worse in rural districts. Cash out is a gamble.", 48},
		{"x", "makerere_econ", "UGX transaction volumes on mobile money platforms hit a record this quarter per BOU data.", 60},
	}
	docs := make([]core.Document, 0, len(posts))
	for _, p := range posts {
		docs = append(docs, core.Document{
			Source:   p.source,
			Author:   p.author,
			Text:     p.text,
			Language: "en",
			PostedAt: now.Add(-time.Duration(p.ageHours) * time.Hour),
		})
	}
	return docs
}
