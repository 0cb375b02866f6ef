package pipeline

import (
	"context"

	"go.uber.org/zap"

	"fintel/internal/core"
	"fintel/internal/store"
	"fintel/internal/synthesis"
)

// SynthesizeStage resolves cross-stage conflicts and produces the final
// report. The report slot is always set, fallback or not; the returned
// error only records that the model path was unavailable. The report
// and a daily briefing insight are persisted best-effort.
type SynthesizeStage struct {
	Synth  *synthesis.Synthesizer
	Store  *store.Store
	Logger *zap.Logger
}

func (s *SynthesizeStage) Name() string { return "synthesize" }

func (s *SynthesizeStage) Run(ctx context.Context, st State) (State, error) {
	log := s.log()

	conflicts := synthesis.DetectConflicts(st.AllInsights())
	resolution := s.Synth.Resolve(ctx, conflicts)
	if len(conflicts) > 0 {
		log.Info("insight conflicts detected",
			zap.String("run_id", st.RunID),
			zap.Int("conflicts", len(conflicts)),
			zap.Bool("resolved", resolution.Resolved))
	}

	in := synthesis.Inputs{
		RunID:         st.RunID,
		DocumentCount: len(st.Documents),
		Social:        st.SocialInsights,
		Competitor:    st.CompetitorInsights,
		Market:        st.MarketInsights,
		Health:        stateHealth(&st),
		Errors:        st.Errors,
	}
	if st.Analysis != nil {
		in.Opportunities = st.Analysis.Opportunities
		in.Risks = st.Analysis.Risks
	}

	rep, synthErr := s.Synth.Synthesize(ctx, in, resolution)
	st.Report = &rep

	if s.Store != nil {
		if err := s.Store.AddReport(ctx, rep); err != nil {
			log.Warn("persist report failed", zap.Error(err))
		}
		briefing, err := s.Synth.Briefing(ctx, rep)
		if err != nil {
			log.Warn("briefing degraded to template", zap.Error(err))
		}
		err = s.Store.AddInsight(ctx, core.Insight{
			Type:       "daily_briefing",
			Text:       briefing,
			Stage:      "synthesize",
			Confidence: rep.Confidence,
		})
		if err != nil {
			log.Warn("persist briefing failed", zap.Error(err))
		}
	}
	return st, synthErr
}

func (s *SynthesizeStage) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
