package store

import (
	"context"
	"testing"
	"time"
)

func TestRuns_and_CaseResults(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	older := time.Now().Add(-time.Hour)
	if err := db.InsertRun(ctx, "run-1", "echo", "default", older); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun(ctx, "run-2", "echo", "default", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun(ctx, "run-3", "other", "default", time.Now()); err != nil {
		t.Fatal(err)
	}

	results := []CaseResult{
		{RunID: "run-2", CaseName: "hello", Passed: true, Stdout: "{\"output\":\"hello\"}\n", Duration: 12 * time.Millisecond},
		{RunID: "run-2", CaseName: "not-json", Passed: false, ExitCode: 0, Detail: "expected failure", Duration: 3 * time.Millisecond},
	}
	for _, r := range results {
		if err := db.InsertCaseResult(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.FinishRun(ctx, "run-2", RunFailed, 1, 1); err != nil {
		t.Fatal(err)
	}

	runs, err := db.RunsForProvider(ctx, "echo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("RunsForProvider: %+v", runs)
	}
	if runs[0].ID != "run-2" || runs[0].Status != RunFailed || runs[0].Passed != 1 || runs[0].Failed != 1 || runs[0].FinishedAt == nil {
		t.Errorf("newest run: %+v", runs[0])
	}
	if runs[1].ID != "run-1" || runs[1].Status != RunRunning || runs[1].FinishedAt != nil {
		t.Errorf("older run: %+v", runs[1])
	}

	limited, err := db.RunsForProvider(ctx, "echo", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: %+v", limited)
	}

	got, err := db.CaseResults(ctx, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("CaseResults: %+v", got)
	}
	if got[0].CaseName != "hello" || !got[0].Passed || got[0].Duration != 12*time.Millisecond || got[0].Stdout != results[0].Stdout {
		t.Errorf("first case: %+v", got[0])
	}
	if got[1].CaseName != "not-json" || got[1].Passed || got[1].Detail != "expected failure" {
		t.Errorf("second case: %+v", got[1])
	}

	empty, err := db.CaseResults(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no results for run-1, got %+v", empty)
	}
}

func TestPruneRuns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Now()
	for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, 24 * time.Hour, time.Minute} {
		id := "echo-" + string(rune('a'+i))
		if err := db.InsertRun(ctx, id, "echo", "default", now.Add(-age)); err != nil {
			t.Fatal(err)
		}
		if err := db.InsertCaseResult(ctx, CaseResult{RunID: id, CaseName: "c", Passed: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.InsertRun(ctx, "other-a", "other", "default", now.Add(-96*time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Older than 36h: echo-a, echo-b, other-a. Keeping 1 per provider spares other-a.
	n, err := db.PruneRuns(ctx, now.Add(-36*time.Hour), 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("pruned %d runs, want 2", n)
	}
	runs, _ := db.RunsForProvider(ctx, "echo", 10)
	if len(runs) != 2 || runs[0].ID != "echo-d" || runs[1].ID != "echo-c" {
		t.Errorf("remaining echo runs: %+v", runs)
	}
	others, _ := db.RunsForProvider(ctx, "other", 10)
	if len(others) != 1 {
		t.Errorf("kept run of other provider was pruned: %+v", others)
	}
	orphans, err := db.CaseResults(ctx, "echo-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 0 {
		t.Errorf("case results of pruned run survived: %+v", orphans)
	}
}
