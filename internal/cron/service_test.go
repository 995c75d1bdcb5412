package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLock struct {
	held       bool
	refreshErr error
	refreshes  int
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Refresh(context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	affected int64
	err      error
	block    bool
	runs     int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) (int64, error) {
	t.runs++
	if t.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return t.affected, t.err
}

type recordedRun struct {
	job, outcome string
	affected     int64
}

type fakeRecorder struct {
	runs    []recordedRun
	skipped int
}

func (f *fakeRecorder) ObserveRun(job, outcome string, _ time.Duration, affected int64) {
	f.runs = append(f.runs, recordedRun{job: job, outcome: outcome, affected: affected})
}

func (f *fakeRecorder) IncSkippedCycle() { f.skipped++ }

func newTestService(t *testing.T, lock Lock, rec *fakeRecorder, timeout time.Duration, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry:   registry,
		Lock:       lock,
		Metrics:    rec,
		JobTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "checkout-expiry", affected: 3}
	failing := &testJob{name: "layby-orphans", err: errors.New("boom")}
	lock := &fakeLock{}
	rec := &fakeRecorder{}
	svc := newTestService(t, lock, rec, 0, ok, failing)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", ok.runs, failing.runs)
	}
	if lock.refreshes != 1 {
		t.Fatalf("expected lock refreshed between jobs, got %d", lock.refreshes)
	}
	if lock.releases != 1 || lock.held {
		t.Fatal("expected lock released after cycle")
	}
	want := []recordedRun{
		{job: "checkout-expiry", outcome: outcomeSuccess, affected: 3},
		{job: "layby-orphans", outcome: outcomeFailure},
	}
	if len(rec.runs) != len(want) {
		t.Fatalf("expected %d recorded runs, got %v", len(want), rec.runs)
	}
	for i := range want {
		if rec.runs[i] != want[i] {
			t.Fatalf("run %d: expected %+v, got %+v", i, want[i], rec.runs[i])
		}
	}
}

func TestServiceRunCycleSkipsWhenLocked(t *testing.T) {
	job := &testJob{name: "sweep"}
	rec := &fakeRecorder{}
	svc := newTestService(t, &fakeLock{held: true}, rec, 0, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("job should not run while another instance holds the lock")
	}
	if rec.skipped != 1 {
		t.Fatalf("expected skipped cycle recorded, got %d", rec.skipped)
	}
}

func TestServiceRunCycleStopsWhenLockLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	lock := &fakeLock{refreshErr: ErrLockLost}
	svc := newTestService(t, lock, &fakeRecorder{}, 0, first, second)

	if err := svc.runCycle(context.Background()); !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost, got %v", err)
	}
	if first.runs != 1 || second.runs != 0 {
		t.Fatalf("expected only the first job to run, got %d and %d", first.runs, second.runs)
	}
}

func TestServiceRunJobTimesOut(t *testing.T) {
	slow := &testJob{name: "outbox-retention", block: true}
	rec := &fakeRecorder{}
	svc := newTestService(t, &fakeLock{}, rec, 10*time.Millisecond, slow)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(rec.runs) != 1 || rec.runs[0].outcome != outcomeTimeout {
		t.Fatalf("expected a timeout outcome, got %v", rec.runs)
	}
}

func TestServiceRunReturnsOnCancel(t *testing.T) {
	svc := newTestService(t, &fakeLock{}, &fakeRecorder{}, 0, &testJob{name: "sweep"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
