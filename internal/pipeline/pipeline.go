// Package pipeline runs the fixed analysis sequence: fetch,
// preprocess, social, competitor, market, synthesize. Stages share a
// State value and never abort the run; anything that goes wrong is
// accumulated in State.Errors and reflected in the final report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fintel/internal/core"
	"fintel/internal/obs"
	"fintel/internal/synthesis"
)

// Stage transforms the run state. Run returns its best-effort state
// even when it also returns an error: the orchestrator keeps the state
// and records the error.
type Stage interface {
	Name() string
	Run(ctx context.Context, st State) (State, error)
}

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

type Orchestrator struct {
	stages []Stage
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

func NewOrchestrator(stages []Stage, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stages: stages,
		logger: logger,
		tracer: obs.Tracer(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run executes every stage in order and always returns a state with a
// structurally valid report. The error is non-nil only when the
// context was cancelled mid-run.
func (o *Orchestrator) Run(ctx context.Context) (State, error) {
	st := State{RunID: o.newID(), StartedAt: o.now()}
	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", st.RunID)))
	defer span.End()

	o.logger.Info("pipeline run starting",
		zap.String("run_id", st.RunID),
		zap.Int("stages", len(o.stages)))

	for _, stage := range o.stages {
		st = o.runStage(ctx, stage, st)
	}
	o.finalize(&st)

	o.logger.Info("pipeline run finished",
		zap.String("run_id", st.RunID),
		zap.Int("documents", len(st.Documents)),
		zap.Int("insights", len(st.AllInsights())),
		zap.Int("errors", len(st.Errors)),
		zap.Duration("duration", o.now().Sub(st.StartedAt)))
	return st, ctx.Err()
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, st State) (out State) {
	name := stage.Name()
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "stage."+name)
	defer span.End()

	in := st.Clone()
	out = in
	defer func() {
		if r := recover(); r != nil {
			out = st.Clone()
			out.Errors = append(out.Errors, fmt.Sprintf("%s: panic: %v", name, r))
			o.logger.Error("stage panicked",
				zap.String("run_id", st.RunID),
				zap.String("stage", name),
				zap.Any("panic", r))
		}
	}()

	o.logger.Info("stage starting",
		zap.String("run_id", st.RunID),
		zap.String("stage", name),
		zap.Int("docs_in", len(in.Documents)),
		zap.Int("raw_in", len(in.RawDocuments)))

	res, err := stage.Run(ctx, in)
	out = res
	if err != nil {
		serr := &StageError{Stage: name, Err: err}
		out.Errors = append(out.Errors, serr.Error())
		span.RecordError(serr)
		o.logger.Warn("stage failed",
			zap.String("run_id", st.RunID),
			zap.String("stage", name),
			zap.Error(err))
	}

	o.logger.Info("stage finished",
		zap.String("run_id", st.RunID),
		zap.String("stage", name),
		zap.Int("docs_out", len(out.Documents)),
		zap.Int("insights_out", len(out.AllInsights())),
		zap.Bool("failed", err != nil),
		zap.Duration("duration", o.now().Sub(start)))
	span.SetAttributes(
		attribute.Int("docs.out", len(out.Documents)),
		attribute.Int("insights.out", len(out.AllInsights())),
	)
	return out
}

// finalize guarantees the run invariants: a report exists, its error
// list mirrors the run's, and empty slots are empty rather than nil.
func (o *Orchestrator) finalize(st *State) {
	if st.Errors == nil {
		st.Errors = []string{}
	}
	if st.Report == nil {
		rep := synthesis.NewSynthesizer(nil).Fallback(synthesis.Inputs{
			RunID:         st.RunID,
			DocumentCount: len(st.Documents),
			Social:        st.SocialInsights,
			Competitor:    st.CompetitorInsights,
			Market:        st.MarketInsights,
			Health:        stateHealth(st),
			Errors:        st.Errors,
		}, synthesis.Resolution{Resolved: false, Note: "Synthesis never ran"})
		st.Report = &rep
	}
	st.Report.Errors = append([]string{}, st.Errors...)
	st.Report.Degraded = len(st.Errors) > 0
	if st.SocialInsights == nil {
		st.SocialInsights = []core.Insight{}
	}
	if st.CompetitorInsights == nil {
		st.CompetitorInsights = []core.Insight{}
	}
	if st.MarketInsights == nil {
		st.MarketInsights = []core.Insight{}
	}
}

func stateHealth(st *State) *core.HealthIndicators {
	if st.Analysis == nil {
		return nil
	}
	h := st.Analysis.Health
	return &h
}
