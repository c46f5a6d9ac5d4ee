package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/cache"
	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/store"
)

// countingTarget records refresh calls and their timing.
type countingTarget struct {
	mu    sync.Mutex
	calls int
	at    []time.Time
	err   error
	block chan struct{}
}

func (t *countingTarget) Name() string { return domain.Lecturers }

func (t *countingTarget) Refresh(ctx context.Context) error {
	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.at = append(t.at, time.Now())
	return t.err
}

func (t *countingTarget) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func TestSchedule_RunsAfterDelay(t *testing.T) {
	target := &countingTarget{}
	r := New(target, resilience.NewCooldown(time.Second), WithDelay(50*time.Millisecond))
	defer r.Close()

	start := time.Now()
	if !r.Schedule(context.Background()) {
		t.Fatal("first Schedule should be accepted")
	}
	if target.count() != 0 {
		t.Error("refresh ran before the delay")
	}
	r.Wait()

	if target.count() != 1 {
		t.Fatalf("refresh calls = %d, want 1", target.count())
	}
	if elapsed := target.at[0].Sub(start); elapsed < 50*time.Millisecond {
		t.Errorf("refresh ran after %v, want >= 50ms", elapsed)
	}
}

func TestSchedule_CooldownAllowsOneCall(t *testing.T) {
	target := &countingTarget{}
	r := New(target, resilience.NewCooldown(time.Second), WithDelay(time.Millisecond))
	defer r.Close()
	ctx := context.Background()

	first := r.Schedule(ctx)
	r.Wait()
	second := r.Schedule(ctx)
	r.Wait()

	if !first || second {
		t.Errorf("Schedule results = %v, %v; want true, false", first, second)
	}
	if target.count() != 1 {
		t.Errorf("refresh calls = %d, want 1", target.count())
	}
	if s := r.Gate().State(); s.Dropped != 1 || s.Running {
		t.Errorf("gate state = %+v", s)
	}
}

func TestSchedule_DropsWhileRunning(t *testing.T) {
	target := &countingTarget{block: make(chan struct{})}
	gate := resilience.NewCooldown(time.Millisecond)
	r := New(target, gate, WithDelay(0))
	defer r.Close()
	ctx := context.Background()

	if !r.Schedule(ctx) {
		t.Fatal("first Schedule should be accepted")
	}
	time.Sleep(10 * time.Millisecond)
	if r.Schedule(ctx) {
		t.Error("Schedule while running should be dropped")
	}
	close(target.block)
	r.Wait()

	time.Sleep(5 * time.Millisecond)
	if !r.Schedule(ctx) {
		t.Error("Schedule after run and cooldown should be accepted")
	}
	r.Wait()
	if target.count() != 2 {
		t.Errorf("refresh calls = %d, want 2", target.count())
	}
}

func TestSchedule_ConcurrentRequestsSingleRun(t *testing.T) {
	target := &countingTarget{}
	r := New(target, resilience.NewCooldown(time.Second), WithDelay(10*time.Millisecond))
	defer r.Close()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Schedule(context.Background()) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	r.Wait()

	if accepted.Load() != 1 || target.count() != 1 {
		t.Errorf("accepted = %d, calls = %d; want 1, 1", accepted.Load(), target.count())
	}
}

func TestSchedule_FailureReleasesGate(t *testing.T) {
	target := &countingTarget{err: errors.New("backend down")}
	gate := resilience.NewCooldown(time.Millisecond)
	r := New(target, gate, WithDelay(0))
	defer r.Close()

	r.Schedule(context.Background())
	r.Wait()

	if gate.State().Running {
		t.Error("failed refresh should release the gate")
	}
}

func TestSchedule_DetachedFromCallerContext(t *testing.T) {
	target := &countingTarget{}
	r := New(target, resilience.NewCooldown(time.Second), WithDelay(20*time.Millisecond))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r.Schedule(ctx)
	cancel()
	r.Wait()

	if target.count() != 1 {
		t.Errorf("refresh calls = %d, want 1", target.count())
	}
}

func TestClose_CancelsPending(t *testing.T) {
	target := &countingTarget{}
	r := New(target, nil, WithDelay(time.Hour))

	r.Schedule(context.Background())
	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the pending refresh")
	}
	if target.count() != 0 {
		t.Error("cancelled refresh should not run")
	}
	if r.Schedule(context.Background()) {
		t.Error("Schedule after Close should return false")
	}
}

func TestForStore_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	server := []domain.Lecturer{
		{ID: "l1", FullName: "Alice", IsActive: true, CreatedAt: time.Unix(100, 0)},
	}
	var fetches atomic.Int32
	fetch := func(context.Context) ([]domain.Lecturer, error) {
		fetches.Add(1)
		return append([]domain.Lecturer(nil), server...), nil
	}
	c, _ := cache.New[[]domain.Lecturer](ctx, domain.Lecturers, cache.DefaultConfig())
	s, _ := store.New(domain.Lecturers, fetch, c)
	_ = s.FetchItems(ctx, false)

	// Local optimistic change the server never accepted.
	_, _ = s.Mutate(ctx, "l1", func(l domain.Lecturer) (domain.Lecturer, error) {
		return l.WithFlag(domain.FieldIsActive, false)
	})
	server = append(server, domain.Lecturer{ID: "l2", FullName: "Bao", CreatedAt: time.Unix(200, 0)})

	r := New(ForStore(s), resilience.NewCooldown(time.Second), WithDelay(0))
	defer r.Close()
	r.Schedule(ctx)
	r.Wait()

	items := s.Items()
	if len(items) != 2 || items[0].ID != "l2" || !items[1].IsActive {
		t.Errorf("items after reconcile = %+v", items)
	}
	if s.Loading() {
		t.Error("reconcile must not set Loading")
	}
	if fetches.Load() != 2 {
		t.Errorf("fetches = %d, want 2", fetches.Load())
	}
}

func TestForStore_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	fail := false
	fetch := func(context.Context) ([]domain.Lecturer, error) {
		if fail {
			return nil, errors.New("unreachable")
		}
		return []domain.Lecturer{{ID: "l1", IsActive: true}}, nil
	}
	c, _ := cache.New[[]domain.Lecturer](ctx, domain.Lecturers, cache.DefaultConfig())
	s, _ := store.New(domain.Lecturers, fetch, c)
	_ = s.FetchItems(ctx, false)
	_, _ = s.Mutate(ctx, "l1", func(l domain.Lecturer) (domain.Lecturer, error) {
		return l.WithFlag(domain.FieldIsActive, false)
	})
	fail = true

	if err := ForStore(s).Refresh(ctx); err == nil {
		t.Fatal("Refresh should report the fetch failure")
	}
	if l, _ := s.GetItemByID("l1"); l.IsActive {
		t.Error("failed refresh must not roll back optimistic state")
	}
	if s.LastError() != nil {
		t.Error("failed refresh must not surface an error")
	}
}
