package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fintel/internal/collect"
	"fintel/internal/core"
)

// FetchStage pulls the raw document batch for the run. An empty batch
// is substituted from the fallback source so a run on a quiet day
// still exercises the full pipeline.
type FetchStage struct {
	Source   collect.DocumentSource
	Fallback collect.DocumentSource
	Limit    int
	Logger   *zap.Logger
}

func (f *FetchStage) Name() string { return "fetch" }

func (f *FetchStage) Run(ctx context.Context, st State) (State, error) {
	st.RawDocuments = []core.Document{}
	docs, err := f.Source.Fetch(ctx, f.Limit)
	if err != nil {
		return st, fmt.Errorf("fetch documents: %w", err)
	}
	if len(docs) == 0 && f.Fallback != nil {
		f.log().Info("no new documents, substituting sample batch", zap.String("run_id", st.RunID))
		docs, err = f.Fallback.Fetch(ctx, f.Limit)
		if err != nil {
			return st, fmt.Errorf("fetch sample documents: %w", err)
		}
	}
	if len(docs) > 0 {
		st.RawDocuments = docs
	}
	return st, nil
}

func (f *FetchStage) log() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
