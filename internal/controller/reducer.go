package controller

// Reduce は状態とメッセージから次の状態と副作用を計算する。
// 副作用を実行せず、同じ入力に対して常に同じ結果を返す。
func Reduce(s State, msg Msg) (State, Effect) {
	switch m := msg.(type) {
	case Action:
		return reduceAction(s, m)

	case FetchTriggered:
		next := s.loading()
		next.ID = m.ID
		next.Seq = s.Seq + 1
		return next, Fetch{ID: next.ID, Seq: next.Seq}

	case FetchCompleted:
		if IsStale(s, m) {
			return s, nil
		}
		return s.withOutcome(m.Outcome), nil
	}

	return s, nil
}

func reduceAction(s State, a Action) (State, Effect) {
	switch a {
	case ActionNext:
		if !s.NavigationEnabled() {
			return s, nil
		}
		return trigger(s, s.ID+1)

	case ActionPrevious:
		if !s.NavigationEnabled() {
			return s, nil
		}
		return trigger(s, s.ID-1)

	case ActionRefresh:
		return trigger(s, 1)

	case ActionLoad:
		// 初回表示時のみ有効。エラーからの復帰はRefreshに限る
		if s.Seq != 0 {
			return s, nil
		}
		return trigger(s, s.ID)
	}

	return s, nil
}

func trigger(s State, id int) (State, Effect) {
	next := s.loading()
	next.ID = id
	return next, Send{Msg: FetchTriggered{ID: id}}
}

// IsStale は完了したフェッチの結果が現在の状態に対して古いかどうかを返す。
// 後続のフェッチに置き換えられた結果と、読み込み中でない状態に届いた結果が該当する。
func IsStale(s State, m FetchCompleted) bool {
	return m.Seq != s.Seq || s.Phase != PhaseLoading
}
