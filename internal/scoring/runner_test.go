package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spigell/companyfit/internal/ai"
	"github.com/spigell/companyfit/internal/companies"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubScorer struct {
	mu       sync.Mutex
	calls    []string
	failures map[string][]error
	scores   map[string]float64
}

func (s *stubScorer) Score(_ context.Context, req *ai.Request) (*ai.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := req.Company.Name
	s.calls = append(s.calls, name)

	if queue := s.failures[name]; len(queue) > 0 {
		err := queue[0]
		s.failures[name] = queue[1:]
		return nil, err
	}

	return &ai.Assessment{
		Company: name,
		Score:   s.scores[name],
		Usage:   ai.Usage{PromptTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Cost:    0.01,
	}, nil
}

func stubWait(t *testing.T) *[]time.Duration {
	t.Helper()

	var waits []time.Duration
	original := wait
	wait = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { wait = original })

	return &waits
}

func companyList(names ...string) *companies.Companies {
	list := &companies.Companies{}
	for _, name := range names {
		list.Items = append(list.Items, &companies.Company{Name: name, About: "about " + name})
	}
	return list
}

func TestRunnerScoresAllInOrder(t *testing.T) {
	waits := stubWait(t)

	scorer := &stubScorer{scores: map[string]float64{"A": 10, "B": 20, "C": 30, "D": 40, "E": 50}}
	runner := NewRunner(scorer, zap.NewNop())
	runner.BatchSize = 2

	results, err := runner.Run(context.Background(), "Go Developer", companyList("A", "B", "C", "D", "E"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := make([]string, 0, results.Len())
	for _, item := range results.Items {
		names = append(names, item.Company)
	}

	// Results keep dataset order regardless of batching.
	if diff := cmp.Diff([]string{"A", "B", "C", "D", "E"}, names); diff != "" {
		t.Fatalf("unexpected result order (-want +got):\n%s", diff)
	}

	// Three batches of sizes 2, 2 and 1 mean two inter-batch pauses.
	want := []time.Duration{DefaultBatchDelay, DefaultBatchDelay}
	if diff := cmp.Diff(want, *waits); diff != "" {
		t.Fatalf("unexpected waits (-want +got):\n%s", diff)
	}

	if results.TotalTokens != 75 {
		t.Fatalf("expected 75 tokens, got %d", results.TotalTokens)
	}
}

func TestRunnerRetriesTransientError(t *testing.T) {
	waits := stubWait(t)

	scorer := &stubScorer{
		scores:   map[string]float64{"A": 10, "B": 20, "C": 30},
		failures: map[string][]error{"B": {errors.New("boom")}},
	}

	core, observed := observer.New(zapcore.InfoLevel)
	runner := NewRunner(scorer, zap.New(core))

	results, err := runner.Run(context.Background(), "Go Developer", companyList("A", "B", "C"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"A", "B", "B", "C"}, scorer.calls); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}

	if results.Len() != 3 {
		t.Fatalf("expected all companies scored, got %d", results.Len())
	}

	// A single batch, so the only pause is the retry delay.
	if diff := cmp.Diff([]time.Duration{DefaultRetryDelay}, *waits); diff != "" {
		t.Fatalf("unexpected waits (-want +got):\n%s", diff)
	}

	entries := observed.FilterMessage("retrying company after error").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 retry log, got %d", len(entries))
	}

	if got := entries[0].ContextMap()["company"]; got != "B" {
		t.Fatalf("expected retry log for B, got %v", got)
	}
}

func TestRunnerSkipsAfterSecondFailure(t *testing.T) {
	stubWait(t)

	scorer := &stubScorer{
		scores:   map[string]float64{"A": 10, "C": 30},
		failures: map[string][]error{"B": {errors.New("boom"), errors.New("boom again")}},
	}

	core, observed := observer.New(zapcore.InfoLevel)
	runner := NewRunner(scorer, zap.New(core))

	results, err := runner.Run(context.Background(), "Go Developer", companyList("A", "B", "C"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"A", "B", "B", "C"}, scorer.calls); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}

	names := make([]string, 0, results.Len())
	for _, item := range results.Items {
		names = append(names, item.Company)
	}
	if diff := cmp.Diff([]string{"A", "C"}, names); diff != "" {
		t.Fatalf("unexpected results (-want +got):\n%s", diff)
	}

	entries := observed.FilterMessage("skipping company").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 skip log, got %d", len(entries))
	}

	if got := entries[0].ContextMap()["company"]; got != "B" {
		t.Fatalf("expected skip log for B, got %v", got)
	}
}

func TestRunnerSkipsParseErrorWithoutRetry(t *testing.T) {
	waits := stubWait(t)

	scorer := &stubScorer{
		scores:   map[string]float64{"A": 10},
		failures: map[string][]error{"B": {&ai.ParseError{Reason: "no score"}}},
	}

	core, observed := observer.New(zapcore.InfoLevel)
	runner := NewRunner(scorer, zap.New(core))

	results, err := runner.Run(context.Background(), "Go Developer", companyList("A", "B"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// B is asked once only; a second attempt would fail the same way.
	if diff := cmp.Diff([]string{"A", "B"}, scorer.calls); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}

	if len(*waits) != 0 {
		t.Fatalf("expected no waits, got %v", *waits)
	}

	if results.Len() != 1 || results.Items[0].Company != "A" {
		t.Fatalf("unexpected results: %+v", results.Items)
	}

	if got := len(observed.FilterMessage("skipping company").All()); got != 1 {
		t.Fatalf("expected 1 skip log, got %d", got)
	}
}

func TestRunnerSingleBatchHasNoPause(t *testing.T) {
	waits := stubWait(t)

	scorer := &stubScorer{scores: map[string]float64{"A": 10, "B": 20}}
	runner := NewRunner(scorer, zap.NewNop())

	if _, err := runner.Run(context.Background(), "Go Developer", companyList("A", "B")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*waits) != 0 {
		t.Fatalf("expected no waits for a single batch, got %v", *waits)
	}
}

func TestRunnerRejectsEmptyJob(t *testing.T) {
	scorer := &stubScorer{}
	runner := NewRunner(scorer, zap.NewNop())

	if _, err := runner.Run(context.Background(), "   ", companyList("A")); err == nil {
		t.Fatal("expected error for empty job")
	}

	if len(scorer.calls) != 0 {
		t.Fatalf("expected no calls, got %v", scorer.calls)
	}
}

func TestRunnerEmptyList(t *testing.T) {
	scorer := &stubScorer{}
	runner := NewRunner(scorer, zap.NewNop())

	results, err := runner.Run(context.Background(), "Go Developer", &companies.Companies{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results.Len() != 0 {
		t.Fatalf("expected empty results, got %d items", results.Len())
	}
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	stubWait(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := &stubScorer{scores: map[string]float64{"A": 10}}
	runner := NewRunner(scorer, zap.NewNop())

	_, err := runner.Run(ctx, "Go Developer", companyList("A", "B"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(scorer.calls) != 0 {
		t.Fatalf("expected no calls after cancellation, got %v", scorer.calls)
	}
}

func TestChunkCompanies(t *testing.T) {
	list := companyList("A", "B", "C", "D", "E")

	chunks := chunkCompanies(list.Items, 2)

	got := make([][]string, 0, len(chunks))
	for _, chunk := range chunks {
		names := make([]string, 0, len(chunk))
		for _, company := range chunk {
			names = append(names, company.Name)
		}
		got = append(got, names)
	}

	want := [][]string{{"A", "B"}, {"C", "D"}, {"E"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected chunks (-want +got):\n%s", diff)
	}

	if chunks := chunkCompanies(nil, 3); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}
