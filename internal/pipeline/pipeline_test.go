package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"fintel/internal/collect"
	"fintel/internal/core"
	"fintel/internal/scoring"
	"fintel/internal/synthesis"
)

type failingSource struct{}

func (failingSource) Fetch(context.Context, int) ([]core.Document, error) {
	return nil, errors.New("feed unreachable")
}

type failingCompleter struct{ calls int }

func (f *failingCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	return "", errors.New("status code: 503")
}

// memStore is an in-memory cache.Store for stage tests.
type memStore struct {
	entries map[string][]byte
}

func newMemStore() *memStore { return &memStore{entries: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	return m.entries[key], nil
}

func (m *memStore) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	m.entries[key] = payload
	return nil
}

func testStages(source collect.DocumentSource, completer *failingCompleter) []Stage {
	mem := newMemStore()
	return []Stage{
		&FetchStage{Source: source, Limit: 50},
		&PreprocessStage{Relevance: scoring.NewRelevance(nil, 0)},
		&SocialStage{Completer: completer, Cache: mem, Trends: scoring.NewTrendDetector(nil, 7), TTL: 30 * time.Minute},
		&CompetitorStage{Completer: completer, Cache: mem, Competitors: []string{"MTN MoMo", "Airtel Money"}, TTL: 2 * time.Hour},
		&MarketStage{Completer: completer, Cache: mem, Segments: scoring.DefaultSegments, TTL: time.Hour},
		&SynthesizeStage{Synth: synthesis.NewSynthesizer(completer)},
	}
}

func TestRunSurvivesTotalFailure(t *testing.T) {
	completer := &failingCompleter{}
	stages := testStages(failingSource{}, completer)
	o := NewOrchestrator(stages, zap.NewNop())

	st, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.Errors) != len(stages) {
		t.Fatalf("errors = %d (%v), want one per stage (%d)", len(st.Errors), st.Errors, len(stages))
	}
	for i, name := range []string{"fetch", "preprocess", "social", "competitor", "market", "synthesize"} {
		if !strings.HasPrefix(st.Errors[i], name+":") {
			t.Fatalf("errors[%d] = %q, want prefix %q", i, st.Errors[i], name)
		}
	}
	if st.Report == nil {
		t.Fatal("report missing after total failure")
	}
	if !st.Report.Degraded {
		t.Fatal("report should be marked degraded")
	}
	if len(st.Report.Errors) != len(stages) {
		t.Fatalf("report errors = %v", st.Report.Errors)
	}
	if st.Report.HealthScore < 0 || st.Report.HealthScore > 10 {
		t.Fatalf("health = %v", st.Report.HealthScore)
	}
	if st.RawDocuments == nil {
		t.Fatal("fetch must set its output slot even on failure")
	}
	if st.SocialInsights == nil || st.CompetitorInsights == nil || st.MarketInsights == nil {
		t.Fatal("insight slots must be set even on failure")
	}
}

type panicStage struct{ name string }

func (p panicStage) Name() string { return p.name }
func (p panicStage) Run(context.Context, State) (State, error) {
	panic("boom")
}

type recordingStage struct {
	name string
	seen *State
}

func (r *recordingStage) Name() string { return r.name }
func (r *recordingStage) Run(_ context.Context, st State) (State, error) {
	copied := st.Clone()
	r.seen = &copied
	return st, nil
}

func TestRunRecoversFromStagePanic(t *testing.T) {
	after := &recordingStage{name: "after"}
	o := NewOrchestrator([]Stage{panicStage{name: "explode"}, after}, zap.NewNop())

	st, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.Errors) != 1 || !strings.Contains(st.Errors[0], "explode: panic") {
		t.Fatalf("errors = %v", st.Errors)
	}
	if after.seen == nil {
		t.Fatal("stage after the panic did not run")
	}
	if len(after.seen.Errors) != 1 {
		t.Fatalf("panic error not visible downstream: %v", after.seen.Errors)
	}
}

type mutatingStage struct{}

func (mutatingStage) Name() string { return "mutate" }
func (mutatingStage) Run(_ context.Context, st State) (State, error) {
	if len(st.Documents) > 0 {
		st.Documents[0].Topics[0] = "tampered"
	}
	return st, errors.New("after tampering")
}

func TestStageFailureDoesNotCorruptPriorState(t *testing.T) {
	seed := &recordingStage{name: "seed"}
	o := NewOrchestrator([]Stage{seedDocs{}, mutatingStage{}, seed}, zap.NewNop())
	st, _ := o.Run(context.Background())
	// The mutating stage edited its own copy; its output state is
	// adopted, but the original slices it received were clones.
	if st.Documents[0].Topics[0] != "tampered" {
		t.Fatalf("stage output not adopted: %v", st.Documents[0].Topics)
	}
	if len(st.Errors) != 1 {
		t.Fatalf("errors = %v", st.Errors)
	}
}

type seedDocs struct{}

func (seedDocs) Name() string { return "seeddocs" }
func (seedDocs) Run(_ context.Context, st State) (State, error) {
	st.Documents = []core.Document{{Text: "seed", Topics: []string{"fees"}}}
	return st, nil
}

func TestCloneIsolatesSlices(t *testing.T) {
	st := State{
		Documents:      []core.Document{{Text: "a", Topics: []string{"fees"}}},
		SocialInsights: []core.Insight{{Text: "x"}},
		Errors:         []string{"e"},
	}
	cl := st.Clone()
	cl.Documents[0].Topics[0] = "changed"
	cl.SocialInsights[0].Text = "changed"
	cl.Errors[0] = "changed"
	if st.Documents[0].Topics[0] != "fees" || st.SocialInsights[0].Text != "x" || st.Errors[0] != "e" {
		t.Fatalf("clone shares memory with original: %+v", st)
	}
}

func TestRunAssignsRunID(t *testing.T) {
	o := NewOrchestrator(nil, zap.NewNop())
	a, _ := o.Run(context.Background())
	b, _ := o.Run(context.Background())
	if a.RunID == "" || a.RunID == b.RunID {
		t.Fatalf("run ids = %q, %q", a.RunID, b.RunID)
	}
	if a.Report == nil || b.Report == nil {
		t.Fatal("even an empty pipeline must end with a report")
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := fmt.Errorf("wrap: %w", &StageError{Stage: "social", Err: inner})
	if !errors.Is(err, inner) {
		t.Fatal("StageError must unwrap to its cause")
	}
	if got := StageNameFromError(err); got != "social" {
		t.Fatalf("StageNameFromError = %q", got)
	}
}
