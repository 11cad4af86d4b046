package model

// Outcome は1回のフェッチ結果を表す。
// ユーザーまたはFetchErrorのどちらか一方のみを保持する。
type Outcome struct {
	user User
	err  *FetchError
}

// OK は成功結果を生成する。
func OK(u User) Outcome {
	return Outcome{user: u}
}

// Failed は失敗結果を生成する。errがnilの場合はUnclassifiedFailureとして扱う。
func Failed(err *FetchError) Outcome {
	if err == nil {
		err = NewUnclassifiedError(nil)
	}
	return Outcome{err: err}
}

// IsErr は失敗結果かどうかを返す。
func (o Outcome) IsErr() bool {
	return o.err != nil
}

// User は成功時のユーザーを返す。失敗結果の場合はfalseを返す。
func (o Outcome) User() (User, bool) {
	if o.err != nil {
		return User{}, false
	}
	return o.user, true
}

// Err は失敗時のFetchErrorを返す。成功結果の場合はnil。
func (o Outcome) Err() *FetchError {
	return o.err
}
