package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/profileman/internal/config"
	"github.com/hitoshi/profileman/internal/controller"
	"github.com/hitoshi/profileman/internal/fetch"
	"github.com/hitoshi/profileman/internal/handler"
	"github.com/hitoshi/profileman/internal/logger"
	"github.com/hitoshi/profileman/internal/metrics"
	"github.com/hitoshi/profileman/internal/middleware"
	"github.com/hitoshi/profileman/internal/security"
	"github.com/hitoshi/profileman/internal/tui"
)

// dotEnvFile はInitが読み込む環境変数ファイル。
const dotEnvFile = ".env"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envを読み込む。既存の環境変数は上書きしない
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定に従ってロガーを作り直す
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(logger.SetupWithOptions(w, logger.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
	}))

	return cfg, nil
}

// loadDotEnv は環境変数ファイルを読み込む。ファイルが無い場合は何もしない。
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandTUI:
		return runTUI(ctx, cfg)
	default:
		return runServe(ctx, cfg, slog.Default())
	}
}

// profileStack はフェッチャーからコントローラまでの依存関係をまとめたもの。
type profileStack struct {
	controller *controller.Controller
	fetcher    *fetch.Fetcher
	sanitizer  security.ProfileSanitizerService
	registry   *prometheus.Registry
}

// newProfileStack は設定から依存関係をワイヤリングする。
func newProfileStack(cfg *config.Config, log *slog.Logger) (*profileStack, error) {
	// 1. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard(cfg.FetchAllowPrivate)
	sanitizer := security.NewProfileSanitizer()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. フェッチャーの初期化
	fetcher, err := fetch.NewFetcher(fetch.Config{
		BaseURL:                  cfg.APIBaseURL,
		APIKey:                   cfg.APIKey,
		Timeout:                  cfg.FetchTimeout,
		MaxBodySize:              cfg.FetchMaxSize,
		ClearSessionAfterSuccess: cfg.FetchClearSession,
	}, ssrfGuard, log, collector)
	if err != nil {
		return nil, err
	}

	// 4. コントローラの初期化
	ctrl := controller.New(fetcher,
		controller.WithLogger(log),
		controller.WithObserver(collector),
	)

	return &profileStack{
		controller: ctrl,
		fetcher:    fetcher,
		sanitizer:  sanitizer,
		registry:   registry,
	}, nil
}

// run はコントローラのループを開始する。返却される関数でループを停止し、終了を待つ。
func (s *profileStack) run() func() {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.controller.Run(loopCtx)
	}()

	return func() {
		cancel()
		<-done
	}
}

// start はループを開始し、HTTP表示層の初回表示として読み込みを要求する。
func (s *profileStack) start(ctx context.Context) (func(), error) {
	stop := s.run()
	if _, err := s.controller.Dispatch(ctx, controller.ActionLoad); err != nil {
		stop()
		return nil, fmt.Errorf("failed to load initial profile: %w", err)
	}
	return stop, nil
}

// newTUIModel はループを開始し、状態を購読したTUIモデルを返す。
// 初回の読み込みはモデルのInitが送る。
func newTUIModel(ctx context.Context, stack *profileStack) (tui.Model, func()) {
	states, unsubscribe := stack.controller.Subscribe()
	stopController := stack.run()

	model := tui.NewModel(ctx, stack.controller, states, stack.sanitizer)
	return model, func() {
		stopController()
		unsubscribe()
	}
}

// newServer はHTTPサーバーを構築する。
func newServer(cfg *config.Config, stack *profileStack, rateLimiter *middleware.RateLimiter, log *slog.Logger) *http.Server {
	router := handler.NewRouter(&handler.RouterDeps{
		Controller:        stack.controller,
		Sanitizer:         stack.sanitizer,
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Gatherer:          stack.registry,
	})

	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runServe はHTTPサーバーモードで起動する。
// 全依存関係をワイヤリングし、コントローラとHTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting application",
		slog.String("command", string(CommandServe)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	stack, err := newProfileStack(cfg, log)
	if err != nil {
		return err
	}

	stopController, err := stack.start(ctx)
	if err != nil {
		return err
	}
	defer stopController()

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitActions), log)
	defer rateLimiter.Stop()

	server := newServer(cfg, stack, rateLimiter, log)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("HTTP server stopped gracefully")
	return nil
}

// runTUI はターミナルUIモードで起動する。
// 画面を崩さないよう、ログはLOG_FILEが指定されていればそのファイルへ、なければ破棄する。
func runTUI(ctx context.Context, cfg *config.Config) error {
	out, closeLog, err := openLogOutput(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	log := logger.SetupWithOptions(out, logger.Options{Format: cfg.LogFormat, Level: cfg.LogLevel})
	slog.SetDefault(log)

	log.Info("starting application",
		slog.String("command", string(CommandTUI)),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	stack, err := newProfileStack(cfg, log)
	if err != nil {
		return err
	}

	model, stop := newTUIModel(ctx, stack)
	defer stop()

	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}

	log.Info("terminal UI stopped")
	return nil
}

// openLogOutput はTUIモードのログ出力先を開く。
func openLogOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
