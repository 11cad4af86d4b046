package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/profileman/internal/model"
)

var (
	// ErrStopped はループ停止後にアクションが送られたことを示す。
	ErrStopped = errors.New("controller: stopped")
	// ErrUnknownAction は未定義のアクションを示す。
	ErrUnknownAction = errors.New("controller: unknown action")
	// ErrAlreadyRunning はRunが2回以上呼ばれたことを示す。
	ErrAlreadyRunning = errors.New("controller: already running")
)

// inboxSize は受信キューのバッファ数。
const inboxSize = 16

// UserFetcher はユーザー取得のインターフェース。
// 失敗は全てOutcomeとして返し、パニックしない。
type UserFetcher interface {
	Fetch(ctx context.Context, id int) model.Outcome
}

// Observer はアクションと破棄された結果を記録するインターフェース。
type Observer interface {
	RecordAction(action string, accepted bool)
	RecordStaleResult()
}

// Option はControllerのオプション設定。
type Option func(*Controller)

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithObserver はObserverを設定する。
func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		c.observer = observer
	}
}

// envelope は受信キューの要素。replyがnilでなければ遷移後の状態を返す。
type envelope struct {
	msg   Msg
	reply chan State
}

// Controller は状態を単独で所有し、アクションとフェッチ結果を1つのループで逐次処理する。
type Controller struct {
	fetcher  UserFetcher
	logger   *slog.Logger
	observer Observer

	inbox   chan envelope
	done    chan struct{}
	running atomic.Bool

	mu    sync.RWMutex
	state State

	subsMu  sync.Mutex
	subs    map[int]chan State
	nextSub int
	closed  bool

	// 以下はRunのゴルーチンからのみ操作する
	cancelFetch context.CancelFunc
	fetches     sync.WaitGroup
}

// New は新しいControllerを生成する。状態はInitialStateから始まる。
func New(fetcher UserFetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher: fetcher,
		inbox:   make(chan envelope, inboxSize),
		done:    make(chan struct{}),
		state:   InitialState(),
		subs:    make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c
}

// Run は受信キューを処理するループを実行する。ctxがキャンセルされるまでブロックする。
// 終了時は実行中のフェッチをキャンセルして完了を待ち、ctx.Err()を返す。
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.logger.Info("プロフィールコントローラを開始しました", slog.Int("user_id", c.State().ID))

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			c.logger.Info("プロフィールコントローラを停止しました")
			return ctx.Err()

		case env := <-c.inbox:
			s := c.apply(ctx, env.msg)
			if env.reply != nil {
				env.reply <- s
			}
		}
	}
}

// Dispatch はアクションを送信し、遷移が適用された後の状態を返す。
func (c *Controller) Dispatch(ctx context.Context, action Action) (State, error) {
	if !action.Valid() {
		return c.State(), fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	reply := make(chan State, 1)
	select {
	case c.inbox <- envelope{msg: action, reply: reply}:
	case <-c.done:
		return c.State(), ErrStopped
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		select {
		case s := <-reply:
			return s, nil
		default:
			return c.State(), ErrStopped
		}
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// State は現在の状態のスナップショットを返す。
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe は状態の変化を受け取るチャネルを返す。
// チャネルは最新の状態のみを保持し、受信が遅れた場合は古い状態が上書きされる。
// 返却される関数で購読を解除する。ループ停止時にチャネルはクローズされる。
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.subsMu.Lock()
	if c.closed {
		c.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.State()
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// apply はメッセージを遷移関数に通し、Send効果は同じループ内で続けて処理する。
func (c *Controller) apply(ctx context.Context, msg Msg) State {
	current := c.State()

	for msg != nil {
		next, effect := Reduce(current, msg)
		c.observe(current, msg, effect)
		current = next
		msg = nil

		switch e := effect.(type) {
		case Send:
			msg = e.Msg
		case Fetch:
			c.startFetch(ctx, e)
		}
	}

	c.mu.Lock()
	c.state = current
	c.mu.Unlock()

	c.publish(current)
	return current
}

// observe はアクションの受理・無視と破棄された結果を記録する。
func (c *Controller) observe(s State, msg Msg, effect Effect) {
	switch m := msg.(type) {
	case Action:
		accepted := effect != nil
		c.observer.RecordAction(m.String(), accepted)
		if !accepted {
			c.logger.Debug("エラー表示中のためアクションを無視しました",
				slog.String("action", m.String()),
				slog.Int("user_id", s.ID),
			)
		}

	case FetchCompleted:
		if IsStale(s, m) {
			c.observer.RecordStaleResult()
			c.logger.Debug("古いフェッチ結果を破棄しました",
				slog.Uint64("seq", m.Seq),
				slog.Uint64("current_seq", s.Seq),
			)
		}
	}
}

// startFetch は置き換えられたフェッチをキャンセルし、新しいフェッチを開始する。
func (c *Controller) startFetch(ctx context.Context, f Fetch) {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel

	c.logger.Debug("プロフィールのフェッチを開始します",
		slog.Int("user_id", f.ID),
		slog.Uint64("seq", f.Seq),
	)

	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()
		outcome := c.fetcher.Fetch(fetchCtx, f.ID)
		select {
		case c.inbox <- envelope{msg: FetchCompleted{Seq: f.Seq, Outcome: outcome}}:
		case <-c.done:
		}
	}()
}

// shutdown はループ終了時の後処理を行う。
func (c *Controller) shutdown() {
	close(c.done)
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.fetches.Wait()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// publish は購読者に最新の状態を通知する。
func (c *Controller) publish(s State) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

type nopObserver struct{}

func (nopObserver) RecordAction(string, bool) {}
func (nopObserver) RecordStaleResult()        {}
