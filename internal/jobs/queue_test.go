package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gwlsn/hawkeye/internal/jobs"
	"github.com/gwlsn/hawkeye/internal/store"
	"github.com/gwlsn/hawkeye/internal/trajectory"
)

func testSource() jobs.Source {
	return jobs.Source{
		SessionID: "session-1",
		VideoID:   "video-1",
		VideoName: "delivery.mp4",
		VideoSize: 1 << 20,
	}
}

func testAnalysis(t *testing.T, n int) *trajectory.Analysis {
	t.Helper()
	a, err := trajectory.Analyze(context.Background(), trajectory.NewGenerator(n, 0), nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return a
}

func TestQueue(t *testing.T) {
	queue := jobs.NewQueue()

	job := queue.Add(testSource(), 60)

	if job.ID == "" {
		t.Error("job ID should not be empty")
	}
	if job.Status != jobs.StatusPending {
		t.Errorf("expected status pending, got %s", job.Status)
	}
	if job.Steps != 60 {
		t.Errorf("expected 60 steps, got %d", job.Steps)
	}

	got := queue.Get(job.ID)
	if got == nil {
		t.Fatal("failed to get job")
	}
	if got.SessionID != "session-1" || got.VideoName != "delivery.mp4" {
		t.Errorf("unexpected job source: %+v", got)
	}

	// Returned jobs are snapshots
	got.Status = jobs.StatusFailed
	if queue.Get(job.ID).Status != jobs.StatusPending {
		t.Error("mutating a returned job should not affect the queue")
	}
}

func TestQueueClampsSteps(t *testing.T) {
	queue := jobs.NewQueue()

	tests := []struct {
		in       int
		expected int
	}{
		{0, jobs.MinSteps},
		{-5, jobs.MinSteps},
		{60, 60},
		{100000, jobs.MaxSteps},
	}
	for _, tt := range tests {
		if got := queue.Add(testSource(), tt.in).Steps; got != tt.expected {
			t.Errorf("Add(steps=%d).Steps = %d, expected %d", tt.in, got, tt.expected)
		}
	}
}

func TestQueueLifecycle(t *testing.T) {
	queue := jobs.NewQueue()
	job := queue.Add(testSource(), 60)

	if err := queue.StartJob(job.ID); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}
	if got := queue.Get(job.ID); got.Status != jobs.StatusRunning {
		t.Errorf("expected status running, got %s", got.Status)
	}

	// Starting twice fails
	if err := queue.StartJob(job.ID); !errors.Is(err, jobs.ErrJobNotPending) {
		t.Errorf("expected ErrJobNotPending, got %v", err)
	}

	queue.UpdateProgress(job.ID, 30, 60)
	got := queue.Get(job.ID)
	if got.Progress != 50.0 || got.Step != 30 {
		t.Errorf("expected progress 50 at step 30, got %v at %d", got.Progress, got.Step)
	}

	analysis := testAnalysis(t, 60)
	if err := queue.CompleteJob(job.ID, analysis); err != nil {
		t.Fatalf("failed to complete job: %v", err)
	}

	got = queue.Get(job.ID)
	if got.Status != jobs.StatusComplete {
		t.Errorf("expected status complete, got %s", got.Status)
	}
	if got.Progress != 100 || got.Step != 60 {
		t.Errorf("expected 100%% at step 60, got %v at %d", got.Progress, got.Step)
	}
	if got.CompletedAt.IsZero() {
		t.Error("completed_at should be set")
	}

	result, ok := queue.Result(job.ID)
	if !ok {
		t.Fatal("expected a stored analysis")
	}
	if len(result.Trajectory) != 60 {
		t.Errorf("expected 60 samples, got %d", len(result.Trajectory))
	}

	// The queue keeps its own copy
	analysis.Trajectory[0].X = 999
	again, _ := queue.Result(job.ID)
	if again.Trajectory[0].X == 999 {
		t.Error("stored analysis shares memory with the caller")
	}
}

func TestQueueCompleteRequiresRunning(t *testing.T) {
	queue := jobs.NewQueue()
	job := queue.Add(testSource(), 10)

	err := queue.CompleteJob(job.ID, testAnalysis(t, 10))
	if !errors.Is(err, jobs.ErrJobNotRunning) {
		t.Errorf("expected ErrJobNotRunning, got %v", err)
	}
	if _, ok := queue.Result(job.ID); ok {
		t.Error("no analysis should be stored for a job that never ran")
	}

	if err := queue.CompleteJob("missing", testAnalysis(t, 10)); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestQueueUpdateProgressIgnoredWhenNotRunning(t *testing.T) {
	queue := jobs.NewQueue()
	job := queue.Add(testSource(), 10)

	queue.UpdateProgress(job.ID, 5, 10)
	if got := queue.Get(job.ID); got.Progress != 0 {
		t.Errorf("pending job progress should stay 0, got %v", got.Progress)
	}
	queue.UpdateProgress("missing", 5, 10)
}

func TestQueuePersistence(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test.db")

	store1, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	queue1, err := jobs.NewQueueWithStore(store1)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	done := queue1.Add(testSource(), 10)
	queue1.StartJob(done.ID)
	queue1.CompleteJob(done.ID, testAnalysis(t, 10))

	failed := queue1.Add(testSource(), 10)
	queue1.StartJob(failed.ID)
	queue1.FailJob(failed.ID, "boom")

	store1.Close()

	store2, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store2.Close()

	queue2, err := jobs.NewQueueWithStore(store2)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	all := queue2.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs after reload, got %d", len(all))
	}
	if all[0].ID != done.ID || all[1].ID != failed.ID {
		t.Error("job order not preserved")
	}
	if all[0].Status != jobs.StatusComplete {
		t.Errorf("expected complete, got %s", all[0].Status)
	}
	if all[1].Error != "boom" {
		t.Errorf("expected error to persist, got %q", all[1].Error)
	}

	// Analyses are never persisted
	if _, ok := queue2.Result(done.ID); ok {
		t.Error("analysis should not survive a restart")
	}

	stats := queue2.Stats()
	if stats.LifetimeAnalyses != 1 || stats.SessionAnalyses != 1 {
		t.Errorf("expected 1 session and lifetime analysis, got %+v", stats)
	}
}

func TestQueueInterruptedJobsCancelledOnLoad(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test.db")

	store1, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	queue1, _ := jobs.NewQueueWithStore(store1)

	running := queue1.Add(testSource(), 60)
	queue1.StartJob(running.ID)
	queue1.UpdateProgress(running.ID, 20, 60)
	pending := queue1.Add(testSource(), 60)
	store1.Close()

	// Simulate startup
	store2, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store2.Close()

	count, err := store2.ResetRunningJobs()
	if err != nil {
		t.Fatalf("failed to reset running jobs: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 reset job, got %d", count)
	}

	queue2, err := jobs.NewQueueWithStore(store2)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	for _, id := range []string{running.ID, pending.ID} {
		got := queue2.Get(id)
		if got == nil {
			t.Fatalf("job %s missing after reload", id)
		}
		if got.Status != jobs.StatusCancelled {
			t.Errorf("job %s: expected cancelled, got %s", id, got.Status)
		}
	}
	if queue2.GetNext() != nil {
		t.Error("nothing should be runnable after a restart")
	}
}

func TestQueueGetNext(t *testing.T) {
	queue := jobs.NewQueue()

	if queue.GetNext() != nil {
		t.Error("expected nil for empty queue")
	}

	job1 := queue.Add(testSource(), 10)
	job2 := queue.Add(testSource(), 10)

	if next := queue.GetNext(); next.ID != job1.ID {
		t.Errorf("expected job1, got %s", next.ID)
	}

	queue.StartJob(job1.ID)
	if next := queue.GetNext(); next.ID != job2.ID {
		t.Errorf("expected job2, got %s", next.ID)
	}

	queue.StartJob(job2.ID)
	if queue.GetNext() != nil {
		t.Error("expected nil when all jobs running")
	}
}

func TestQueueCancel(t *testing.T) {
	queue := jobs.NewQueue()
	job := queue.Add(testSource(), 10)

	if err := queue.CancelJob(job.ID); err != nil {
		t.Fatalf("failed to cancel job: %v", err)
	}
	if got := queue.Get(job.ID); got.Status != jobs.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", got.Status)
	}

	err := queue.CancelJob(job.ID)
	if !errors.Is(err, jobs.ErrJobFinished) {
		t.Errorf("expected ErrJobFinished cancelling twice, got %v", err)
	}

	if err := queue.CancelJob("missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestQueueRequeue(t *testing.T) {
	queue := jobs.NewQueue()

	job1 := queue.Add(testSource(), 10)
	job2 := queue.Add(testSource(), 10)

	queue.StartJob(job2.ID)
	queue.UpdateProgress(job2.ID, 5, 10)

	if err := queue.Requeue(job2.ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	got := queue.Get(job2.ID)
	if got.Status != jobs.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.Progress != 0 || got.Step != 0 {
		t.Errorf("progress should reset, got %v at %d", got.Progress, got.Step)
	}

	// Requeued job moves to the front
	if next := queue.GetNext(); next.ID != job2.ID {
		t.Errorf("expected requeued job first, got %s (job1=%s)", next.ID, job1.ID)
	}

	if err := queue.Requeue(job1.ID); !errors.Is(err, jobs.ErrJobNotRunning) {
		t.Errorf("expected ErrJobNotRunning, got %v", err)
	}
}

func TestQueueClearAndRemove(t *testing.T) {
	queue := jobs.NewQueue()

	done := queue.Add(testSource(), 10)
	queue.StartJob(done.ID)
	queue.CompleteJob(done.ID, testAnalysis(t, 10))

	running := queue.Add(testSource(), 10)
	queue.StartJob(running.ID)

	cancelled := queue.Add(testSource(), 10)
	queue.CancelJob(cancelled.ID)

	if n := queue.Clear(jobs.StatusCancelled); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if n := queue.Clear(""); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if _, ok := queue.Result(done.ID); ok {
		t.Error("clearing a job should drop its analysis")
	}
	if queue.Get(running.ID) == nil {
		t.Error("running jobs are never cleared")
	}

	queue.Remove(running.ID)
	if len(queue.GetAll()) != 0 {
		t.Errorf("expected empty queue, got %d jobs", len(queue.GetAll()))
	}
}

func TestQueueResultsBounded(t *testing.T) {
	queue := jobs.NewQueue()
	analysis := testAnalysis(t, 2)

	var ids []string
	for i := 0; i < 70; i++ {
		job := queue.Add(testSource(), 2)
		queue.StartJob(job.ID)
		if err := queue.CompleteJob(job.ID, analysis); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		ids = append(ids, job.ID)
	}

	if _, ok := queue.Result(ids[0]); ok {
		t.Error("oldest analysis should have been evicted")
	}
	if _, ok := queue.Result(ids[len(ids)-1]); !ok {
		t.Error("newest analysis should be kept")
	}
}

func TestQueueStats(t *testing.T) {
	queue := jobs.NewQueue()

	queue.Add(testSource(), 10)
	running := queue.Add(testSource(), 10)
	queue.StartJob(running.ID)
	done := queue.Add(testSource(), 10)
	queue.StartJob(done.ID)
	queue.CompleteJob(done.ID, testAnalysis(t, 10))
	failed := queue.Add(testSource(), 10)
	queue.StartJob(failed.ID)
	queue.FailJob(failed.ID, "boom")
	cancelled := queue.Add(testSource(), 10)
	queue.CancelJob(cancelled.ID)

	stats := queue.Stats()
	if stats.Total != 5 {
		t.Errorf("expected 5 total, got %d", stats.Total)
	}
	if stats.Pending != 1 || stats.Running != 1 || stats.Complete != 1 || stats.Failed != 1 || stats.Cancelled != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.SessionAnalyses != 1 {
		t.Errorf("expected 1 session analysis without a store, got %d", stats.SessionAnalyses)
	}
}

func TestQueueResetSessionStats(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	queue, _ := jobs.NewQueueWithStore(st)
	for i := 0; i < 2; i++ {
		job := queue.Add(testSource(), 5)
		queue.StartJob(job.ID)
		queue.CompleteJob(job.ID, testAnalysis(t, 5))
	}

	if err := queue.ResetSessionStats(); err != nil {
		t.Fatalf("reset session: %v", err)
	}

	stats := queue.Stats()
	if stats.SessionAnalyses != 0 {
		t.Errorf("expected session count 0 after reset, got %d", stats.SessionAnalyses)
	}
	if stats.LifetimeAnalyses != 2 {
		t.Errorf("expected lifetime count 2, got %d", stats.LifetimeAnalyses)
	}

	// In-memory queues have nothing to reset
	if err := jobs.NewQueue().ResetSessionStats(); err != nil {
		t.Errorf("expected nil for in-memory queue, got %v", err)
	}
}

func TestQueueSubscription(t *testing.T) {
	queue := jobs.NewQueue()

	ch := queue.Subscribe()
	defer queue.Unsubscribe(ch)

	job := queue.Add(testSource(), 10)
	queue.StartJob(job.ID)
	queue.UpdateProgress(job.ID, 1, 10)
	queue.CancelJob(job.ID)

	expected := []string{"added", "started", "progress", "cancelled"}
	for _, typ := range expected {
		select {
		case event := <-ch:
			if event.Type != typ {
				t.Errorf("expected %s event, got %s", typ, event.Type)
			}
			if event.Job.ID != job.ID {
				t.Errorf("expected job %s, got %s", job.ID, event.Job.ID)
			}
		default:
			t.Fatalf("missing %s event", typ)
		}
	}
}

func TestQueueAddWithID(t *testing.T) {
	queue := jobs.NewQueue()

	id := jobs.NewID()
	if other := jobs.NewID(); other == id {
		t.Fatal("NewID returned the same ID twice")
	}

	job := queue.AddWithID(id, testSource(), 60)
	if job.ID != id {
		t.Errorf("expected ID %s, got %s", id, job.ID)
	}
	if got := queue.Get(id); got == nil || got.Status != jobs.StatusPending {
		t.Errorf("expected pending job under the given ID, got %+v", got)
	}
	if next := queue.GetNext(); next == nil || next.ID != id {
		t.Error("job added with an ID should be next in line")
	}
}
