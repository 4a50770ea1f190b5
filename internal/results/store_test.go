package results_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
	"github.com/p-n-ai/pai-arena/internal/results"
	"github.com/p-n-ai/pai-arena/internal/session"
)

var _ session.Sink = results.Store(nil)

func sampleResult(id, player, competency string, finished time.Time) session.Result {
	score := 0.9
	return session.Result{
		SessionID:    id,
		PlayerID:     player,
		CompetencyID: competency,
		Metrics: proficiency.Metrics{
			Accuracy:       1,
			ElapsedSeconds: 70,
			EdgeCaseScore:  &score,
			SessionCount:   3,
		},
		Level: proficiency.LevelMastery,
		Questions: []answer.QuestionResult{
			{QuestionID: "q1", Question: "What drives growth?", UserAnswer: "revenue", IsCorrect: true, Reason: answer.ReasonExact, Detail: "exact match", MatchedAnswer: "revenue"},
		},
		EdgeCase:   &session.EdgeCaseEvent{Triggered: true, TriggeredAt: 60 * time.Second, Responded: true, RecoveredBy: "hedge", Score: score},
		StartedAt:  finished.Add(-70 * time.Second),
		FinishedAt: finished,
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := results.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	want := sampleResult("s1", "player-1", "market-volatility", now)
	if err := store.SaveResult(ctx, want); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}

	got, err := store.GetResult(ctx, "s1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if got.Level != proficiency.LevelMastery || got.PlayerID != "player-1" {
		t.Errorf("GetResult() = %+v", got)
	}
}

func TestMemoryStore_GetResult_NotFound(t *testing.T) {
	store := results.NewMemoryStore()

	_, err := store.GetResult(context.Background(), "nonexistent")
	if !errors.Is(err, results.ErrNotFound) {
		t.Errorf("GetResult() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SaveResult_Rejects(t *testing.T) {
	store := results.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name   string
		result session.Result
	}{
		{"missing session", sampleResult("", "p", "c", now)},
		{"missing player", sampleResult("s", "", "c", now)},
		{"missing competency", sampleResult("s", "p", "", now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveResult(ctx, tt.result); err == nil {
				t.Error("SaveResult() should fail")
			}
		})
	}

	if err := store.SaveResult(ctx, sampleResult("dup", "p", "c", now)); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := store.SaveResult(ctx, sampleResult("dup", "p", "c", now)); err == nil {
		t.Error("SaveResult() should reject a second result for the same session")
	}
}

func TestMemoryStore_CountAndList(t *testing.T) {
	store := results.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, r := range []session.Result{
		sampleResult("s1", "player-1", "market-volatility", base),
		sampleResult("s2", "player-1", "market-volatility", base.Add(time.Hour)),
		sampleResult("s3", "player-1", "pricing-basics", base),
		sampleResult("s4", "player-2", "market-volatility", base),
	} {
		if err := store.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult(%d) error = %v", i, err)
		}
	}

	n, err := store.CountCompleted(ctx, "player-1", "market-volatility")
	if err != nil {
		t.Fatalf("CountCompleted() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountCompleted() = %d, want 2", n)
	}

	list, err := store.ListResults(ctx, "player-1", "market-volatility")
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "s2" {
		t.Errorf("ListResults() = %d results starting with %q, want 2 starting with s2", len(list), list[0].SessionID)
	}

	if n, _ := store.CountCompleted(ctx, "nobody", "market-volatility"); n != 0 {
		t.Errorf("CountCompleted(nobody) = %d, want 0", n)
	}
}
