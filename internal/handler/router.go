package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/profileman/internal/metrics"
	"github.com/hitoshi/profileman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Controller ProfileController
	Sanitizer  UserSanitizer
	Logger     *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// Gatherer がnilの場合は /metrics を公開しない
	Gatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Recovery → SecurityHeaders → CORS
//
// アクション送信（POST）にはさらにクライアントIPごとのレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	profileHandler := NewProfileHandler(deps.Controller, deps.Sanitizer, deps.Logger)

	// --- 参照系 ---
	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Get("/", profileHandler.ShowPage)
	r.Get("/api/profile", profileHandler.GetProfile)

	// --- アクション送信 ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Post("/api/profile/{action}", profileHandler.DispatchAction)
		r.Post("/profile/{action}", profileHandler.SubmitAction)
	})

	return r
}
