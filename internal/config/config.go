package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL string
	APIKey     string

	// Fetch
	FetchTimeout      time.Duration
	FetchMaxSize      int64
	FetchClearSession bool
	FetchAllowPrivate bool

	// Rate Limit
	RateLimitActions int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogFormat string
	LogLevel  string
	LogFile   string
}

// DefaultAPIBaseURL はプロフィール取得APIのデフォルトのベースURL。
const DefaultAPIBaseURL = "https://reqres.in/api/"

// Load は環境変数からConfigを読み込む。
// 値の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = envValue("API_BASE_URL", DefaultAPIBaseURL, parseString)
	cfg.APIKey = envValue("API_KEY", "", parseString)
	cfg.FetchTimeout = envValue("FETCH_TIMEOUT", 10*time.Second, time.ParseDuration)
	cfg.FetchMaxSize = envValue("FETCH_MAX_SIZE", int64(1<<20), parseInt64)
	cfg.FetchClearSession = envValue("FETCH_CLEAR_SESSION", true, strconv.ParseBool)
	cfg.FetchAllowPrivate = envValue("FETCH_ALLOW_PRIVATE", false, strconv.ParseBool)
	cfg.RateLimitActions = envValue("RATE_LIMIT_ACTIONS", 120, strconv.Atoi)
	cfg.ServerPort = envValue("SERVER_PORT", "8080", parseString)
	cfg.CORSAllowedOrigin = envValue("CORS_ALLOWED_ORIGIN", "http://localhost:3000", parseString)
	cfg.LogFormat = strings.ToLower(envValue("LOG_FORMAT", "json", parseString))
	cfg.LogLevel = strings.ToLower(envValue("LOG_LEVEL", "info", parseString))
	cfg.LogFile = envValue("LOG_FILE", "", parseString)

	var invalid []string
	switch cfg.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, "LOG_FORMAT")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "LOG_LEVEL")
	}
	if cfg.FetchMaxSize <= 0 {
		invalid = append(invalid, "FETCH_MAX_SIZE")
	}
	if cfg.RateLimitActions <= 0 {
		invalid = append(invalid, "RATE_LIMIT_ACTIONS")
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return cfg, nil
}

// envValue は環境変数をparseで変換して返す。
// 未設定・空文字列・変換できない値の場合はdefaultValを返す。
func envValue[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultVal
	}
	v, err := parse(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
