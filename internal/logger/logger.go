package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options はロガーの出力形式とレベルを指定する。
type Options struct {
	Format string // json または text
	Level  string // debug, info, warn, error
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	return SetupWithOptions(w, Options{Format: "json", Level: "info"})
}

// SetupWithOptions は指定された形式とレベルでslog.Loggerを生成する。
// textの場合はtintによるコンソール向けの色付き出力になる。
func SetupWithOptions(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	switch opts.Format {
	case "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerが指定された場合はそのwriterに出力する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}

// ParseLevel はレベル名をslog.Levelに変換する。未知の値はInfoとして扱う。
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
