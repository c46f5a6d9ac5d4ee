package toggle

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/api"
	"github.com/5-logic/the-sync-frontend-sub001/cache"
	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/notify"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
	"github.com/5-logic/the-sync-frontend-sub001/reconcile"
	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/store"
)

const (
	testSettle   = 60 * time.Millisecond
	testDebounce = 60 * time.Millisecond
)

type sendCall struct {
	id    string
	field string
	value bool
	at    time.Time
}

// backend is a fake SendFunc target.
type backend struct {
	mu    sync.Mutex
	calls []sendCall
	delay time.Duration
	err   error
	block chan struct{}
}

func (b *backend) send(ctx context.Context, id, field string, value bool) error {
	b.mu.Lock()
	b.calls = append(b.calls, sendCall{id: id, field: field, value: value, at: time.Now()})
	delay, err, block := b.delay, b.err, b.block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (b *backend) sent() []sendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sendCall(nil), b.calls...)
}

// scheduler counts reconcile requests.
type scheduler struct {
	count atomic.Int32
}

func (s *scheduler) Schedule(context.Context) bool {
	s.count.Add(1)
	return true
}

// outcomes records toggle outcomes.
type outcomes struct {
	observe.Metrics
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) RecordToggle(_ context.Context, _ observe.Scope, outcome string) {
	o.mu.Lock()
	o.seen = append(o.seen, outcome)
	o.mu.Unlock()
}

func (o *outcomes) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

type harness struct {
	store   *store.Store[domain.Lecturer]
	backend *backend
	notes   *notify.Recorder
	sched   *scheduler
	metrics *outcomes
	coord   *Coordinator[domain.Lecturer]
}

func seed() []domain.Lecturer {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Lecturer{
		{ID: "l1", FullName: "Alice Nguyen", IsActive: true, CreatedAt: t0},
		{ID: "l2", FullName: "Bao Tran", IsActive: true, CreatedAt: t0.Add(time.Hour)},
		{ID: "l3", FullName: "Chi Le", IsActive: false, CreatedAt: t0.Add(2 * time.Hour)},
	}
}

func newStore(t *testing.T, fetch store.FetchFunc[domain.Lecturer]) *store.Store[domain.Lecturer] {
	t.Helper()
	ctx := context.Background()
	c, err := cache.New[[]domain.Lecturer](ctx, domain.Lecturers, cache.DefaultConfig())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	s, err := store.New(domain.Lecturers, fetch, c,
		store.WithFilter(func(l domain.Lecturer, f store.Filters) bool {
			if want, ok := f.Bool("isActive"); ok {
				return l.IsActive == want
			}
			return true
		}))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := s.FetchItems(ctx, false); err != nil {
		t.Fatalf("FetchItems: %v", err)
	}
	return s
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		backend: &backend{},
		notes:   &notify.Recorder{},
		sched:   &scheduler{},
		metrics: &outcomes{Metrics: observe.NopMetrics()},
	}
	h.store = newStore(t, func(context.Context) ([]domain.Lecturer, error) { return seed(), nil })
	h.store.SetFilters(store.Filters{"isActive": true})

	opts = append([]Option{
		WithSettleDelay(testSettle),
		WithDebounceWindow(testDebounce),
		WithNotifier(h.notes),
		WithReconciler(h.sched),
		WithMetrics(h.metrics),
	}, opts...)
	h.coord = New[domain.Lecturer](h.store, h.backend.send, opts...)
	t.Cleanup(h.coord.Close)
	return h
}

func (h *harness) lecturer(t *testing.T, id string) domain.Lecturer {
	t.Helper()
	l, ok := h.store.GetItemByID(id)
	if !ok {
		t.Fatalf("lecturer %s missing", id)
	}
	return l
}

func filteredIDs(s *store.Store[domain.Lecturer]) string {
	var ids []string
	for _, l := range s.FilteredItems() {
		ids = append(ids, l.ID)
	}
	return strings.Join(ids, ",")
}

func TestSubmit_AppliesOptimisticallyBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.backend.block = make(chan struct{})
	defer close(h.backend.block)

	if got := filteredIDs(h.store); got != "l2,l1" {
		t.Fatalf("initial FilteredItems = %s", got)
	}

	p, err := h.coord.Submit(context.Background(), "l1", domain.FieldIsActive, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.lecturer(t, "l1").IsActive {
		t.Error("items not updated synchronously")
	}
	if got := filteredIDs(h.store); got != "l2" {
		t.Errorf("FilteredItems not recomputed synchronously: %s", got)
	}
	if len(h.backend.sent()) != 0 {
		t.Error("request sent before settle delay")
	}
	op := p.Operation()
	if op.ID == "" || op.EntityID != "l1" || op.PendingValue {
		t.Errorf("Operation = %+v", op)
	}
	if pending, ok := h.coord.Pending("l1"); !ok || pending.ID != op.ID {
		t.Errorf("Pending(l1) = (%+v, %v)", pending, ok)
	}
}

func TestToggle_SuccessDeactivatesAndReconciles(t *testing.T) {
	s := newStore(t, func(context.Context) ([]domain.Lecturer, error) { return seed(), nil })

	var fetchedAt atomic.Int64
	server := seed()
	server[0].IsActive = false
	r := reconcile.New(&fetchRecorder{Store: s, at: &fetchedAt, items: server},
		resilience.NewCooldown(resilience.DefaultCooldown))
	defer r.Close()

	b := &backend{delay: 50 * time.Millisecond}
	notes := &notify.Recorder{}
	coord := New[domain.Lecturer](s, b.send,
		WithSettleDelay(testSettle), WithNotifier(notes), WithReconciler(r))
	defer coord.Close()

	if !coord.Toggle(context.Background(), "l1", domain.FieldIsActive, false) {
		t.Fatal("Toggle returned false on success")
	}
	committedAt := time.Now()

	if l, _ := s.GetItemByID("l1"); l.IsActive {
		t.Error("final isActive should be false")
	}
	msgs := notes.Messages()
	if len(msgs) != 1 || msgs[0].Level != notify.LevelSuccess || !strings.Contains(msgs[0].Title, "deactivated") {
		t.Fatalf("notifications = %+v, want one success mentioning deactivated", msgs)
	}
	if coord.Loading("l1") {
		t.Error("loading flag not cleared")
	}

	r.Wait()
	at := fetchedAt.Load()
	if at == 0 {
		t.Fatal("reconcile fetch did not run")
	}
	if d := time.Unix(0, at).Sub(committedAt); d < 400*time.Millisecond || d > 900*time.Millisecond {
		t.Errorf("reconcile fetch ran %v after commit, want about 500ms", d)
	}
}

// fetchRecorder is a reconcile.Target stand-in over a store that returns
// fixed server state and records when it was fetched.
type fetchRecorder struct {
	*store.Store[domain.Lecturer]
	at    *atomic.Int64
	items []domain.Lecturer
}

func (f *fetchRecorder) Refresh(ctx context.Context) error {
	f.at.Store(time.Now().UnixNano())
	f.Replace(ctx, f.items)
	return nil
}

func TestToggle_FailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.backend.err = &api.ServerError{StatusCode: 500, Message: "Lecturer update failed"}

	beforeItems := h.store.Items()
	beforeFiltered := h.store.FilteredItems()

	if h.coord.Toggle(context.Background(), "l1", domain.FieldIsActive, false) {
		t.Fatal("Toggle should return false after a rolled-back failure")
	}

	if got := h.store.Items(); !reflect.DeepEqual(got, beforeItems) {
		t.Errorf("items after rollback = %+v, want %+v", got, beforeItems)
	}
	if got := h.store.FilteredItems(); !reflect.DeepEqual(got, beforeFiltered) {
		t.Errorf("filteredItems after rollback = %+v, want %+v", got, beforeFiltered)
	}
	if !h.lecturer(t, "l1").IsActive {
		t.Error("final isActive should be reverted to true")
	}
	if h.notes.Count(notify.LevelError) != 1 || h.notes.Count(notify.LevelSuccess) != 0 {
		t.Errorf("notifications = %+v, want exactly one error", h.notes.Messages())
	}
	msg := h.notes.Messages()[0]
	if msg.Title != "Failed to deactivate lecturer" || !strings.Contains(msg.Body, "Lecturer update failed") {
		t.Errorf("error notification = %+v", msg)
	}
	if h.sched.count.Load() != 0 {
		t.Error("reconcile scheduled after failure")
	}
	if got := h.metrics.list(); !reflect.DeepEqual(got, []string{observe.OutcomeRolledBack}) {
		t.Errorf("outcomes = %v", got)
	}
}

func TestToggle_SupersedeWithinDebounce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, _ := h.coord.Submit(ctx, "l1", domain.FieldIsModerator, true)
	time.Sleep(testDebounce / 3)
	second, _ := h.coord.Submit(ctx, "l1", domain.FieldIsModerator, false)

	// The second pending value is shown throughout.
	if h.lecturer(t, "l1").IsModerator {
		t.Error("second toggle's pending value not applied")
	}
	if !first.Wait() {
		t.Error("superseded operation should report accepted")
	}
	if !second.Wait() {
		t.Error("second operation should succeed")
	}

	sent := h.backend.sent()
	if len(sent) != 1 || sent[0].value {
		t.Fatalf("requests = %+v, want only the second (value=false)", sent)
	}
	if h.notes.Count(notify.LevelSuccess) != 1 || h.notes.Count(notify.LevelError) != 0 {
		t.Errorf("notifications = %+v, want one success", h.notes.Messages())
	}
	if got := h.metrics.list(); !reflect.DeepEqual(got, []string{observe.OutcomeSuperseded, observe.OutcomeCommitted}) {
		t.Errorf("outcomes = %v", got)
	}
}

func TestToggle_SupersededThenFailedRestoresOriginal(t *testing.T) {
	h := newHarness(t)
	h.backend.err = api.ErrNetwork
	ctx := context.Background()
	original := h.store.Items()

	first, _ := h.coord.Submit(ctx, "l2", domain.FieldIsActive, false)
	time.Sleep(testDebounce / 3)
	second, _ := h.coord.Submit(ctx, "l2", domain.FieldIsModerator, true)

	if !first.Wait() {
		t.Error("superseded operation must not report failure")
	}
	if second.Wait() {
		t.Error("failed operation should report false")
	}
	if got := h.store.Items(); !reflect.DeepEqual(got, original) {
		t.Errorf("items = %+v, want state before the first toggle", got)
	}
	if h.notes.Count(notify.LevelError) != 1 {
		t.Errorf("notifications = %+v, want one error", h.notes.Messages())
	}
}

func TestToggle_TimelineOnlyLaterRequestReachesNetwork(t *testing.T) {
	h := newHarness(t, WithSettleDelay(300*time.Millisecond), WithDebounceWindow(300*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	first, _ := h.coord.Submit(ctx, "l1", domain.FieldIsActive, false)
	time.Sleep(100 * time.Millisecond)
	second, _ := h.coord.Submit(ctx, "l1", domain.FieldIsActive, true)

	for _, tick := range []time.Duration{50, 150, 250} {
		time.Sleep(tick*time.Millisecond - time.Since(start.Add(100*time.Millisecond)))
		if !h.lecturer(t, "l1").IsActive {
			t.Errorf("at +%dms the t=100ms pending value is not shown", tick)
		}
	}
	first.Wait()
	second.Wait()

	sent := h.backend.sent()
	if len(sent) != 1 || !sent[0].value {
		t.Fatalf("requests = %+v, want only the t=100ms request", sent)
	}
	if d := sent[0].at.Sub(start); d < 400*time.Millisecond {
		t.Errorf("request sent at +%v, want >= 400ms", d)
	}
}

func TestSubmit_NoOpWhileLoading(t *testing.T) {
	h := newHarness(t)
	h.backend.block = make(chan struct{})
	ctx := context.Background()

	first, _ := h.coord.Submit(ctx, "l1", domain.FieldIsActive, false)
	waitFor(t, func() bool { return h.coord.Loading("l1") })

	second, err := h.coord.Submit(ctx, "l1", domain.FieldIsActive, true)
	if err != nil {
		t.Fatalf("Submit while loading: %v", err)
	}
	select {
	case <-second.Done():
	default:
		t.Fatal("no-op toggle should resolve immediately")
	}
	if !second.Wait() || second.Operation().ID != "" {
		t.Errorf("no-op handle = %+v", second.Operation())
	}
	if h.lecturer(t, "l1").IsActive {
		t.Error("no-op toggle changed state")
	}

	close(h.backend.block)
	first.Wait()
	if n := len(h.backend.sent()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestSubmit_LaterToggleReplacesUnsentOperation(t *testing.T) {
	tests := []struct {
		name     string
		debounce time.Duration
	}{
		{"after debounce window", 30 * time.Millisecond},
		{"zero debounce window", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithSettleDelay(150*time.Millisecond), WithDebounceWindow(tt.debounce))
			ctx := context.Background()

			first, _ := h.coord.Submit(ctx, "l1", domain.FieldIsActive, false)
			time.Sleep(60 * time.Millisecond)
			second, err := h.coord.Submit(ctx, "l1", domain.FieldIsActive, true)
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if second.Operation().ID == "" {
				t.Fatal("later toggle was absorbed instead of registered")
			}
			if !h.lecturer(t, "l1").IsActive {
				t.Error("later toggle not applied optimistically")
			}

			if !first.Wait() || !second.Wait() {
				t.Fatal("Wait() = false, want true for both")
			}
			sent := h.backend.sent()
			if len(sent) != 1 || !sent[0].value {
				t.Errorf("requests = %+v, want only the later one", sent)
			}
			if !h.lecturer(t, "l1").IsActive {
				t.Error("final isActive = false, want the later value")
			}
			if n := h.notes.Count(notify.LevelSuccess); n != 1 {
				t.Errorf("success notifications = %d, want 1", n)
			}
		})
	}
}

func TestSubmit_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before := h.store.Items()

	tests := []struct {
		name    string
		id      string
		field   string
		wantErr error
	}{
		{"unknown id", "nope", domain.FieldIsActive, ErrUnknownEntity},
		{"unknown field", "l1", domain.FieldIsPublished, domain.ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.coord.Submit(ctx, tt.id, tt.field, true)
			var ve *ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit error = %v, want ValidationError wrapping %v", err, tt.wantErr)
			}
			if h.coord.Toggle(ctx, tt.id, tt.field, true) {
				t.Error("Toggle should return false for a rejected toggle")
			}
		})
	}

	if !reflect.DeepEqual(h.store.Items(), before) {
		t.Error("rejected toggles changed state")
	}
	time.Sleep(testSettle + 20*time.Millisecond)
	if len(h.backend.sent()) != 0 {
		t.Error("rejected toggles reached the network")
	}
}

func TestToggle_DistinctIDsIndependent(t *testing.T) {
	h := newHarness(t)
	h.backend.delay = 30 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i, id := range []string{"l1", "l2", "l3"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = h.coord.Toggle(ctx, id, domain.FieldIsModerator, true)
		}(i, id)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("toggle %d failed", i)
		}
	}
	if n := len(h.backend.sent()); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
	for _, l := range h.store.Items() {
		if !l.IsModerator {
			t.Errorf("%s not moderator", l.ID)
		}
	}
	if h.coord.ids.size() != 0 {
		t.Errorf("id locks leaked: %d", h.coord.ids.size())
	}
}

func TestToggle_ContextDoneReturnsAccepted(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if !h.coord.Toggle(ctx, "l1", domain.FieldIsActive, false) {
		t.Error("Toggle should report accepted when ctx ends first")
	}
	h.coord.Wait()
	if n := len(h.backend.sent()); n != 1 {
		t.Errorf("operation should carry on after ctx ends, requests = %d", n)
	}
}

func TestClose_CancelsWithoutRollback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, _ := h.coord.Submit(ctx, "l1", domain.FieldIsActive, false)
	h.coord.Close()

	if !p.Wait() {
		t.Error("cancelled operation should report accepted")
	}
	if len(h.backend.sent()) != 0 {
		t.Error("cancelled operation reached the network")
	}
	if h.lecturer(t, "l1").IsActive {
		t.Error("cancelled operation must not roll back")
	}
	if h.notes.Count(notify.LevelError)+h.notes.Count(notify.LevelSuccess) != 0 {
		t.Error("cancelled operation emitted a notification")
	}
	if _, err := h.coord.Submit(ctx, "l2", domain.FieldIsActive, false); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close error = %v, want ErrClosed", err)
	}
}

func TestWithWording(t *testing.T) {
	h := newHarness(t, WithWording(domain.Wording{Noun: "Supervisor"}))

	h.coord.Toggle(context.Background(), "l1", domain.FieldIsActive, false)
	msgs := h.notes.Messages()
	if len(msgs) != 1 || msgs[0].Title != "Supervisor deactivated" || msgs[0].Body != "Alice Nguyen has been deactivated." {
		t.Errorf("notifications = %+v", msgs)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
