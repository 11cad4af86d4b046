package handler

import (
	"log/slog"
	"net/http"
)

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// Health は GET /health のハンドラー。プロセスが応答可能であることのみを示す。
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, slog.Default(), http.StatusOK, healthResponse{Status: "ok"})
}
