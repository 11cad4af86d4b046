// Package fetch はリモートAPIからのユーザープロフィール取得を提供する。
// 1回のHTTP GETを行い、結果をユーザーまたは分類済みのFetchErrorに変換する。
// リトライとキャッシュは行わない。
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/profileman/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// MetricsRecorder はフェッチ結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordFetchSuccess()
	RecordFetchFailure(kind string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Config はFetcherの設定。
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxBodySize int64
	// ClearSessionAfterSuccess がtrueの場合、デコード成功後にCookieとアイドル接続を破棄する。
	ClearSessionAfterSuccess bool
}

const (
	userAgent = "Profileman/1.0"
	// defaultMaxBodySize はMaxBodySize未指定時のレスポンスボディ上限（1MiB）。
	defaultMaxBodySize = 1 << 20
)

// Fetcher はユーザープロフィールのHTTPフェッチとデコードを行う。
// SSRF検証済みのクライアントで1回だけリクエストし、失敗は全てFetchErrorに変換する。
type Fetcher struct {
	baseURL      string
	apiKey       string
	session      *Session
	ssrfGuard    SSRFValidator
	logger       *slog.Logger
	metrics      MetricsRecorder
	maxBodySize  int64
	clearSession bool
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// metricsがnilの場合はメトリクスを記録しない。
func NewFetcher(
	cfg Config,
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	metrics MetricsRecorder,
) (*Fetcher, error) {
	session, err := NewSession(ssrfGuard.NewSafeClient(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("フェッチセッションの初期化に失敗: %w", err)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	return &Fetcher{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		session:      session,
		ssrfGuard:    ssrfGuard,
		logger:       logger,
		metrics:      metrics,
		maxBodySize:  maxBodySize,
		clearSession: cfg.ClearSessionAfterSuccess,
	}, nil
}

// Session はフェッチで共有しているセッションを返す。
func (f *Fetcher) Session() *Session {
	return f.session
}

// Fetch は指定IDのユーザーを1回だけ取得する。
// 成功時はユーザーを、失敗時は分類済みのFetchErrorを含むOutcomeを返す。
func (f *Fetcher) Fetch(ctx context.Context, id int) model.Outcome {
	start := time.Now()
	requestID := uuid.NewString()

	// リクエスト先URLの構築
	target, err := f.userURL(id)
	if err != nil {
		return f.fail(id, requestID, model.NewInvalidRequestError(err))
	}
	if err := f.ssrfGuard.ValidateURL(target); err != nil {
		return f.fail(id, requestID, model.NewInvalidRequestError(fmt.Errorf("SSRF検証失敗: %w", err)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return f.fail(id, requestID, model.NewInvalidRequestError(fmt.Errorf("リクエスト作成に失敗: %w", err)))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}

	// HTTPリクエスト実行（接続失敗・タイムアウト・キャンセルは全てServerFailure）
	resp, err := f.session.Client().Do(req)
	if err != nil {
		return f.fail(id, requestID, model.NewServerFailureError(fmt.Errorf("HTTPリクエスト失敗: %w", err)))
	}
	defer resp.Body.Close()

	f.metrics.RecordHTTPStatus(resp.StatusCode)
	f.metrics.RecordFetchLatency(time.Since(start))

	result := ClassifyHTTPStatus(resp.StatusCode)
	if result != FetchResultOK {
		cause := fmt.Errorf("HTTPステータス %d", resp.StatusCode)
		return f.fail(id, requestID, model.NewFetchError(result.ErrorKind(), cause))
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return f.fail(id, requestID, model.NewServerFailureError(fmt.Errorf("レスポンス読み取り失敗: %w", err)))
	}
	if int64(len(body)) > f.maxBodySize {
		return f.fail(id, requestID, model.NewUnclassifiedError(
			fmt.Errorf("レスポンスボディが上限 %d バイトを超えています", f.maxBodySize)))
	}

	user, err := decodeUser(body)
	if err != nil {
		return f.fail(id, requestID, model.NewUnclassifiedError(err))
	}

	// 前回のセッション状態を引き継がないようにCookieと接続を破棄する
	if f.clearSession {
		if err := f.session.Reset(); err != nil {
			f.logger.Warn("フェッチセッションのリセットに失敗しました",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
		}
	}

	f.metrics.RecordFetchSuccess()
	f.logger.Info("プロフィールのフェッチが完了しました",
		slog.Int("user_id", id),
		slog.String("request_id", requestID),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return model.OK(user)
}

// userURL はベースURLに users/{id} を連結したURLを返す。
func (f *Fetcher) userURL(id int) (string, error) {
	target, err := url.JoinPath(f.baseURL, "users", strconv.Itoa(id))
	if err != nil {
		return "", fmt.Errorf("リクエストURLの構築に失敗: %w", err)
	}
	return target, nil
}

// fail は失敗をログとメトリクスに記録してOutcomeに変換する。
func (f *Fetcher) fail(id int, requestID string, fetchErr *model.FetchError) model.Outcome {
	level := slog.LevelWarn
	if errors.Is(fetchErr, model.NewNotFoundError(nil)) {
		level = slog.LevelInfo
	}

	attrs := []any{
		slog.Int("user_id", id),
		slog.String("request_id", requestID),
		slog.String("kind", fetchErr.Kind.String()),
	}
	if fetchErr.Cause != nil {
		attrs = append(attrs, slog.String("error", fetchErr.Cause.Error()))
	}
	f.logger.Log(context.Background(), level, "プロフィールのフェッチに失敗しました", attrs...)

	f.metrics.RecordFetchFailure(fetchErr.Kind.String())
	return model.Failed(fetchErr)
}

// singleUserResponse は users/{id} のレスポンスボディ。
type singleUserResponse struct {
	Data *userPayload `json:"data"`
}

// userPayload は必須フィールドの欠落を検出するためポインタで受ける。
type userPayload struct {
	ID        *int    `json:"id"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Avatar    *string `json:"avatar"`
}

// decodeUser はレスポンスボディをデコードし、全フィールドが揃っていることを検証する。
func decodeUser(body []byte) (model.User, error) {
	var resp singleUserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.User{}, fmt.Errorf("レスポンスJSONのパースに失敗: %w", err)
	}
	if resp.Data == nil {
		return model.User{}, errors.New("レスポンスにdataがありません")
	}

	d := resp.Data
	var missing []string
	if d.ID == nil {
		missing = append(missing, "id")
	}
	if d.Email == nil {
		missing = append(missing, "email")
	}
	if d.FirstName == nil {
		missing = append(missing, "first_name")
	}
	if d.LastName == nil {
		missing = append(missing, "last_name")
	}
	if d.Avatar == nil {
		missing = append(missing, "avatar")
	}
	if len(missing) > 0 {
		return model.User{}, fmt.Errorf("必須フィールドがありません: %v", missing)
	}

	return model.User{
		ID:        *d.ID,
		Email:     *d.Email,
		FirstName: *d.FirstName,
		LastName:  *d.LastName,
		Avatar:    *d.Avatar,
	}, nil
}

// nopMetrics はメトリクスを記録しないMetricsRecorder。
type nopMetrics struct{}

func (nopMetrics) RecordFetchSuccess()              {}
func (nopMetrics) RecordFetchFailure(string)        {}
func (nopMetrics) RecordHTTPStatus(int)             {}
func (nopMetrics) RecordFetchLatency(time.Duration) {}
