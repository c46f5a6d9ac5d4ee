package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/store"
)

type fakeStore struct {
	name    string
	loading bool
	lastErr *store.Error
}

func (f fakeStore) Name() string            { return f.name }
func (f fakeStore) Loading() bool           { return f.loading }
func (f fakeStore) LastError() *store.Error { return f.lastErr }

func TestStoreChecker(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		store      fakeStore
		wantStatus Status
		wantCode   any
	}{
		{
			name:       "no error",
			store:      fakeStore{name: "lecturers"},
			wantStatus: StatusHealthy,
		},
		{
			name: "network error",
			store: fakeStore{name: "lecturers", lastErr: &store.Error{
				Message:   "Network error. Please check your connection.",
				Timestamp: at,
			}},
			wantStatus: StatusDegraded,
		},
		{
			name: "server error",
			store: fakeStore{name: "theses", loading: true, lastErr: &store.Error{
				Message:    "Internal error",
				StatusCode: 500,
				Timestamp:  at,
			}},
			wantStatus: StatusDegraded,
			wantCode:   500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewStoreChecker(tt.store)
			if c.Name() != tt.store.name {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.store.name)
			}

			result := c.Check(context.Background())
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", result.Status, tt.wantStatus)
			}
			if result.Details["loading"] != tt.store.loading {
				t.Errorf("loading = %v, want %v", result.Details["loading"], tt.store.loading)
			}
			if result.Details["status_code"] != tt.wantCode {
				t.Errorf("status_code = %v, want %v", result.Details["status_code"], tt.wantCode)
			}
			if tt.store.lastErr != nil && result.Details["error_at"] != "2025-03-01T12:00:00Z" {
				t.Errorf("error_at = %v", result.Details["error_at"])
			}
		})
	}
}

func TestBreakerChecker(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 40 * time.Millisecond,
	})
	c := NewBreakerChecker("api", b)
	ctx := context.Background()

	if c.Name() != "api" {
		t.Errorf("Name() = %q, want api", c.Name())
	}
	if got := c.Check(ctx).Status; got != StatusHealthy {
		t.Errorf("closed: Status = %v, want healthy", got)
	}

	_ = b.Execute(ctx, func(context.Context) error { return errors.New("boom") })

	result := c.Check(ctx)
	if result.Status != StatusUnhealthy {
		t.Errorf("open: Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Error, resilience.ErrCircuitOpen) {
		t.Errorf("open: Error = %v, want ErrCircuitOpen", result.Error)
	}
	if result.Details["state"] != "open" {
		t.Errorf("open: state = %v", result.Details["state"])
	}
	if _, ok := result.Details["last_failure"]; !ok {
		t.Error("open: last_failure missing")
	}

	time.Sleep(60 * time.Millisecond)

	if got := c.Check(ctx).Status; got != StatusDegraded {
		t.Errorf("half-open: Status = %v, want degraded", got)
	}
}

func TestGateChecker(t *testing.T) {
	ctx := context.Background()
	gate := resilience.NewCooldown(time.Hour)
	c := NewGateChecker("lecturers-reconcile", gate, 0)

	if c.stallAfter != DefaultStallAfter {
		t.Errorf("stallAfter = %v, want %v", c.stallAfter, DefaultStallAfter)
	}
	if got := c.Check(ctx); got.Status != StatusHealthy || got.Message != "no refresh yet" {
		t.Errorf("idle: %v %q", got.Status, got.Message)
	}

	if !gate.Acquire() {
		t.Fatal("Acquire() = false")
	}
	_ = gate.Acquire()

	result := c.Check(ctx)
	if result.Status != StatusHealthy {
		t.Errorf("running: Status = %v, want healthy", result.Status)
	}
	if result.Details["dropped"] != int64(1) {
		t.Errorf("dropped = %v, want 1", result.Details["dropped"])
	}

	c.now = func() time.Time { return time.Now().Add(time.Minute) }
	if got := c.Check(ctx).Status; got != StatusDegraded {
		t.Errorf("stalled: Status = %v, want degraded", got)
	}

	gate.Release()
	if got := c.Check(ctx).Status; got != StatusHealthy {
		t.Errorf("released: Status = %v, want healthy", got)
	}
}
