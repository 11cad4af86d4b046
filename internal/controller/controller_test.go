package controller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

// fetchCall はgatedFetcherに届いた1回のフェッチ呼び出し。
type fetchCall struct {
	id     int
	ctx    context.Context
	result chan model.Outcome
}

// gatedFetcher はテスト側が結果を返すまでフェッチをブロックする。
type gatedFetcher struct {
	calls chan *fetchCall
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{calls: make(chan *fetchCall, 16)}
}

func (g *gatedFetcher) Fetch(ctx context.Context, id int) model.Outcome {
	call := &fetchCall{id: id, ctx: ctx, result: make(chan model.Outcome, 1)}
	g.calls <- call
	select {
	case o := <-call.result:
		return o
	case <-ctx.Done():
		return model.Failed(model.NewServerFailureError(ctx.Err()))
	}
}

func (g *gatedFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch call")
		return nil
	}
}

func (g *gatedFetcher) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected fetch call for id %d", c.id)
	case <-time.After(50 * time.Millisecond):
	}
}

// recordingObserver はObserverの呼び出しを記録する。
type recordingObserver struct {
	mu       sync.Mutex
	accepted map[string]int
	ignored  map[string]int
	stale    int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{accepted: map[string]int{}, ignored: map[string]int{}}
}

func (r *recordingObserver) RecordAction(action string, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if accepted {
		r.accepted[action]++
	} else {
		r.ignored[action]++
	}
}

func (r *recordingObserver) RecordStaleResult() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func (r *recordingObserver) staleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

func startController(t *testing.T, fetcher UserFetcher, opts ...Option) (*Controller, <-chan State) {
	t.Helper()
	c := New(fetcher, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	states, unsubscribe := c.Subscribe()
	t.Cleanup(func() {
		unsubscribe()
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return c, states
}

// waitFor は条件を満たす状態が通知されるまで待つ。
func waitFor(t *testing.T, states <-chan State, cond func(State) bool) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-states:
			if !ok {
				t.Fatal("state channel closed")
			}
			if cond(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for state")
			return State{}
		}
	}
}

func dispatch(t *testing.T, c *Controller, a Action) State {
	t.Helper()
	s, err := c.Dispatch(context.Background(), a)
	if err != nil {
		t.Fatalf("Dispatch(%s) error = %v", a, err)
	}
	return s
}

func TestController_InitialStateBeforeLoad(t *testing.T) {
	f := newGatedFetcher()
	c, _ := startController(t, f)

	s := c.State()
	if s.ID != 1 || s.Phase != PhaseLoading {
		t.Errorf("State() = %+v, want ID=1 Loading", s)
	}
	f.assertNoCall(t)
}

func TestController_ScenarioA(t *testing.T) {
	f := newGatedFetcher()
	c, states := startController(t, f)

	s := dispatch(t, c, ActionLoad)
	if s.ID != 1 || s.Phase != PhaseLoading {
		t.Fatalf("after load = %+v", s)
	}

	call := f.next(t)
	if call.id != 1 {
		t.Fatalf("fetch id = %d, want 1", call.id)
	}
	call.result <- model.OK(janet)

	loaded := waitFor(t, states, func(s State) bool { return s.Phase == PhaseLoaded })
	if !loaded.NavigationEnabled() {
		t.Error("navigation should be enabled when loaded")
	}

	s = dispatch(t, c, ActionNext)
	if s.ID != 2 || s.Phase != PhaseLoading {
		t.Errorf("after next = %+v, want ID=2 Loading", s)
	}
	if call := f.next(t); call.id != 2 {
		t.Errorf("fetch id = %d, want 2", call.id)
	}
}

func TestController_ScenarioB(t *testing.T) {
	f := newGatedFetcher()
	obs := newRecordingObserver()
	c, states := startController(t, f, WithObserver(obs))

	dispatch(t, c, ActionLoad)
	f.next(t).result <- model.Failed(model.NewNotFoundError(nil))

	failed := waitFor(t, states, func(s State) bool { return s.Phase == PhaseFailed })
	msg, _ := failed.ErrorMessage()
	if msg != model.MessageResourceNotFound {
		t.Errorf("message = %q, want %q", msg, model.MessageResourceNotFound)
	}

	s := dispatch(t, c, ActionNext)
	if s != failed {
		t.Errorf("next while failed changed state: %+v", s)
	}
	f.assertNoCall(t)

	s = dispatch(t, c, ActionRefresh)
	if s.ID != 1 || s.Phase != PhaseLoading {
		t.Errorf("after refresh = %+v, want ID=1 Loading", s)
	}
	if call := f.next(t); call.id != 1 {
		t.Errorf("fetch id = %d, want 1", call.id)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.ignored["next"] != 1 {
		t.Errorf("ignored next = %d, want 1", obs.ignored["next"])
	}
	if obs.accepted["refresh"] != 1 || obs.accepted["load"] != 1 {
		t.Errorf("accepted = %v", obs.accepted)
	}
}

func TestController_ScenarioC(t *testing.T) {
	f := newGatedFetcher()
	obs := newRecordingObserver()
	c, states := startController(t, f, WithObserver(obs))

	// ID=5まで進める
	dispatch(t, c, ActionLoad)
	f.next(t).result <- model.OK(janet)
	waitFor(t, states, func(s State) bool { return s.Phase == PhaseLoaded })
	for i := 2; i <= 5; i++ {
		dispatch(t, c, ActionNext)
		call := f.next(t)
		if i < 5 {
			call.result <- model.OK(janet)
			waitFor(t, states, func(s State) bool { return s.Phase == PhaseLoaded && s.ID == i })
			continue
		}

		// Fetch(5)が未完了のままPrevious
		s := dispatch(t, c, ActionPrevious)
		if s.ID != 4 || s.Phase != PhaseLoading {
			t.Fatalf("after previous = %+v, want ID=4 Loading", s)
		}
		call4 := f.next(t)
		if call4.id != 4 {
			t.Fatalf("fetch id = %d, want 4", call4.id)
		}

		select {
		case <-call.ctx.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("superseded fetch(5) should be cancelled")
		}

		user4 := janet
		user4.ID = 4
		call4.result <- model.OK(user4)
		loaded := waitFor(t, states, func(s State) bool { return s.Phase == PhaseLoaded })
		if u, _ := loaded.User(); u.ID != 4 {
			t.Errorf("User().ID = %d, want 4", u.ID)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for obs.staleCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if obs.staleCount() != 1 {
		t.Errorf("stale results = %d, want 1", obs.staleCount())
	}

	s := c.State()
	if u, ok := s.User(); !ok || u.ID != 4 || s.ID != 4 {
		t.Errorf("final state = %+v, want loaded user 4", s)
	}
}

func TestController_ExactlyOneFetchPerAction(t *testing.T) {
	f := newGatedFetcher()
	c, _ := startController(t, f)

	dispatch(t, c, ActionLoad)
	dispatch(t, c, ActionNext)
	dispatch(t, c, ActionNext)

	// フェッチのゴルーチンは並行に動くため到着順は問わない
	ids := []int{f.next(t).id, f.next(t).id, f.next(t).id}
	sort.Ints(ids)
	want := []int{1, 2, 3}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("fetch %d id = %d, want %d", i, ids[i], want[i])
		}
	}
	f.assertNoCall(t)
}

func TestController_DispatchUnknownAction(t *testing.T) {
	c, _ := startController(t, newGatedFetcher())

	_, err := c.Dispatch(context.Background(), Action(99))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("error = %v, want ErrUnknownAction", err)
	}
}

func TestController_DispatchAfterStop(t *testing.T) {
	c := New(newGatedFetcher())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if _, err := c.Dispatch(context.Background(), ActionNext); !errors.Is(err, ErrStopped) {
		t.Errorf("Dispatch() error = %v, want ErrStopped", err)
	}
}

func TestController_DispatchContextCanceled(t *testing.T) {
	c := New(newGatedFetcher())
	// ループ未開始のため受信キューを埋める
	for i := 0; i < inboxSize; i++ {
		c.inbox <- envelope{msg: ActionNext}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Dispatch(ctx, ActionNext); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dispatch() error = %v, want DeadlineExceeded", err)
	}
}

func TestController_RunTwice(t *testing.T) {
	c, _ := startController(t, newGatedFetcher())

	// 1回目のRunが開始されるまで待つ
	dispatch(t, c, ActionLoad)

	if err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestController_StopCancelsInFlightFetch(t *testing.T) {
	f := newGatedFetcher()
	c := New(f)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	states, _ := c.Subscribe()

	dispatch(t, c, ActionLoad)
	call := f.next(t)

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	select {
	case <-call.ctx.Done():
	default:
		t.Error("in-flight fetch should be cancelled on stop")
	}

	// ループ停止で購読チャネルはクローズされる
	for range states {
	}

	late, unsubscribe := c.Subscribe()
	defer unsubscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after stop should return a closed channel")
	}
}

func TestController_SubscribeDeliversCurrentState(t *testing.T) {
	c, _ := startController(t, newGatedFetcher())

	states, unsubscribe := c.Subscribe()
	defer unsubscribe()

	select {
	case s := <-states:
		if s.ID != 1 || s.Phase != PhaseLoading {
			t.Errorf("initial state = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial state delivered")
	}
}

func TestController_UnsubscribeClosesChannel(t *testing.T) {
	c, _ := startController(t, newGatedFetcher())

	states, unsubscribe := c.Subscribe()
	<-states
	unsubscribe()
	unsubscribe()

	if _, ok := <-states; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestController_ConcurrentDispatch(t *testing.T) {
	f := newGatedFetcher()
	c, _ := startController(t, f)

	// フェッチ呼び出しを消費し続ける
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case call := <-f.calls:
				call.result <- model.OK(janet)
			case <-stop:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Dispatch(context.Background(), ActionNext); err != nil {
				t.Errorf("Dispatch() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := c.State().ID; got != 11 {
		t.Errorf("ID = %d, want 11", got)
	}
}
