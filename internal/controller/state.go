// Package controller はプロフィール表示の状態機械を提供する。
// 状態遷移は純粋関数Reduceで計算し、Controllerが単一のループで逐次適用する。
package controller

import "github.com/hitoshi/profileman/internal/model"

// Phase は表示状態の種別。
type Phase int

const (
	// PhaseLoading はフェッチ中、またはフェッチ開始前。
	PhaseLoading Phase = iota
	// PhaseLoaded はユーザーの取得に成功した状態。
	PhaseLoaded
	// PhaseFailed はフェッチに失敗した状態。Refresh以外のナビゲーションは無効。
	PhaseFailed
)

// String はフェーズ名を返す。
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State はコントローラの状態のスナップショット。値として扱い、遷移ごとに置き換える。
// ユーザーはPhaseLoadedのときのみ、エラーはPhaseFailedのときのみ保持する。
type State struct {
	// ID は表示対象のユーザーID。上限・下限は設けない。
	ID int
	// Phase は現在の表示状態。
	Phase Phase
	// Seq は最後に開始したフェッチのシーケンス番号。
	Seq uint64

	user model.User
	err  *model.FetchError
}

// InitialState は起動時の状態（ID=1、読み込み中）を返す。
func InitialState() State {
	return State{ID: 1, Phase: PhaseLoading}
}

// User は取得済みのユーザーを返す。PhaseLoaded以外ではfalse。
func (s State) User() (model.User, bool) {
	if s.Phase != PhaseLoaded {
		return model.User{}, false
	}
	return s.user, true
}

// Err は失敗時のエラーを返す。PhaseFailed以外ではnil。
func (s State) Err() *model.FetchError {
	if s.Phase != PhaseFailed {
		return nil
	}
	return s.err
}

// ErrorMessage はユーザー向けのエラーメッセージを返す。
// メッセージが存在するのはPhaseFailedのときに限られる。
func (s State) ErrorMessage() (string, bool) {
	if s.Phase != PhaseFailed || s.err == nil {
		return "", false
	}
	return s.err.Message, true
}

// NavigationEnabled はNext/Previousを受け付けるかどうかを返す。
func (s State) NavigationEnabled() bool {
	return s.Phase != PhaseFailed
}

func (s State) loading() State {
	s.Phase = PhaseLoading
	s.user = model.User{}
	s.err = nil
	return s
}

func (s State) withOutcome(outcome model.Outcome) State {
	if user, ok := outcome.User(); ok {
		s.Phase = PhaseLoaded
		s.user = user
		s.err = nil
		return s
	}
	s.Phase = PhaseFailed
	s.user = model.User{}
	s.err = outcome.Err()
	return s
}
