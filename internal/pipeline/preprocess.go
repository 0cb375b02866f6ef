package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"fintel/internal/core"
	"fintel/internal/scoring"
	"fintel/internal/store"
	"fintel/internal/vectorstore"
)

// PreprocessStage cleans raw posts, annotates relevance, topics, and a
// lexicon sentiment, and keeps only documents above the relevance
// floor. Every inspected document is marked processed in the store so
// it is not re-fetched, relevant or not. Store and vector index are
// optional and best-effort.
type PreprocessStage struct {
	Relevance *scoring.Relevance
	Store     *store.Store
	Vector    vectorstore.VectorStore
	Logger    *zap.Logger
}

func (p *PreprocessStage) Name() string { return "preprocess" }

func (p *PreprocessStage) Run(ctx context.Context, st State) (State, error) {
	st.Documents = []core.Document{}
	if len(st.RawDocuments) == 0 {
		return st, fmt.Errorf("no raw documents to process")
	}

	log := p.log()
	var kept []core.Document
	var seenIDs []int64
	for _, doc := range st.RawDocuments {
		if doc.ID != 0 {
			seenIDs = append(seenIDs, doc.ID)
		}
		doc.CleanText = cleanText(doc.Text)
		if doc.CleanText == "" || !likelyEnglish(doc.CleanText) {
			continue
		}
		if doc.Language == "" {
			doc.Language = "en"
		}
		doc.Relevance = p.Relevance.Score(doc.CleanText)
		doc.Topics = extractTopics(doc.CleanText)
		if doc.SentimentLabel == "" {
			doc.SentimentLabel, doc.SentimentScore = lexiconSentiment(doc.CleanText)
		}

		if p.Store != nil && doc.ID != 0 {
			if err := p.Store.UpdateDerived(ctx, doc); err != nil {
				log.Warn("persist derived fields failed", zap.Int64("post_id", doc.ID), zap.Error(err))
			}
		}
		if doc.Relevance < p.Relevance.Threshold() {
			continue
		}
		if p.Vector != nil {
			id := vectorID(st.RunID, doc)
			meta := map[string]string{"source": doc.Source, "posted_at": doc.PostedAt.Format("2006-01-02")}
			if err := p.Vector.Add(ctx, id, doc.CleanText, meta); err != nil {
				log.Warn("vector index add failed", zap.String("vector_id", id), zap.Error(err))
			}
		}
		kept = append(kept, doc)
	}

	if p.Store != nil && len(seenIDs) > 0 {
		if err := p.Store.MarkProcessed(ctx, seenIDs); err != nil {
			log.Warn("mark processed failed", zap.Error(err))
		}
	}

	if kept == nil {
		kept = []core.Document{}
	}
	st.Documents = kept
	log.Info("preprocessing done",
		zap.String("run_id", st.RunID),
		zap.Int("raw", len(st.RawDocuments)),
		zap.Int("relevant", len(kept)))
	return st, nil
}

func vectorID(runID string, doc core.Document) string {
	if doc.ID != 0 {
		return "post-" + strconv.FormatInt(doc.ID, 10)
	}
	return runID + "-" + doc.Author
}

func (p *PreprocessStage) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
