package controller

import (
	"fmt"
	"strings"

	"github.com/hitoshi/profileman/internal/model"
)

// Msg はReduceに渡すメッセージ。Action、FetchTriggered、FetchCompletedのいずれか。
type Msg interface {
	isMsg()
}

// Action は表示層から送られるユーザー操作。
type Action int

const (
	// ActionNext は次のIDへ進む。
	ActionNext Action = iota + 1
	// ActionPrevious は前のIDへ戻る。
	ActionPrevious
	// ActionRefresh はID=1へ戻して読み込み直す。
	ActionRefresh
	// ActionLoad は現在のIDを読み込む。表示層の初回表示時に1回だけ送る。
	// 一度でもフェッチを開始した後は無視される。
	ActionLoad
)

var actionNames = map[Action]string{
	ActionNext:     "next",
	ActionPrevious: "previous",
	ActionRefresh:  "refresh",
	ActionLoad:     "load",
}

// String はアクション名を返す。
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Valid は定義済みのアクションかどうかを返す。
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// userActions は表示層の外部入力として受け付けるアクション。
// ActionLoadは表示層自身が送るため含めない。
var userActions = []Action{ActionNext, ActionPrevious, ActionRefresh}

// ParseAction はユーザー操作のアクション名（大文字小文字は区別しない）をActionに変換する。
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range userActions {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func (Action) isMsg() {}

// FetchTriggered は指定IDのフェッチ開始を要求する内部メッセージ。
type FetchTriggered struct {
	ID int
}

func (FetchTriggered) isMsg() {}

// FetchCompleted はフェッチ結果を状態に反映する内部メッセージ。
// Seqが現在のフェッチと一致しない結果は破棄される。
type FetchCompleted struct {
	Seq     uint64
	Outcome model.Outcome
}

func (FetchCompleted) isMsg() {}

// Effect は遷移の結果として実行する副作用。
type Effect interface {
	isEffect()
}

// Send はメッセージを同じループ内で即座に再投入する。
type Send struct {
	Msg Msg
}

func (Send) isEffect() {}

// Fetch はIDのフェッチを非同期に実行し、結果をFetchCompletedとして返す。
type Fetch struct {
	ID  int
	Seq uint64
}

func (Fetch) isEffect() {}
