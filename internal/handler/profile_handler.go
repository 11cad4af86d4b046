package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/profileman/internal/controller"
	"github.com/hitoshi/profileman/internal/middleware"
	"github.com/hitoshi/profileman/internal/model"
)

// ProfileController はプロフィールハンドラーが必要とするコントローラのインターフェース。
type ProfileController interface {
	// Dispatch はアクションを送信し、遷移後の状態を返す。
	Dispatch(ctx context.Context, action controller.Action) (controller.State, error)
	// State は現在の状態のスナップショットを返す。
	State() controller.State
}

// UserSanitizer はリモートから取得したユーザー情報を無害化する。
type UserSanitizer interface {
	SanitizeUser(u model.User) model.User
}

// ProfileHandler はプロフィール表示のJSON APIハンドラー。
type ProfileHandler struct {
	ctrl      ProfileController
	sanitizer UserSanitizer
	logger    *slog.Logger
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(ctrl ProfileController, sanitizer UserSanitizer, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		ctrl:      ctrl,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// --- レスポンス型 ---

// profileResponse は状態ビューのレスポンス。
type profileResponse struct {
	ID                int                           `json:"id"`
	Status            string                        `json:"status"`
	NavigationEnabled bool                          `json:"navigation_enabled"`
	User              *userResponse                 `json:"user,omitempty"`
	Error             *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// userResponse は表示用のユーザー情報。
type userResponse struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Avatar    string `json:"avatar"`
}

// newProfileResponse は状態をレスポンスに変換する。ユーザー情報は無害化してから含める。
func newProfileResponse(s controller.State, sanitizer UserSanitizer) profileResponse {
	resp := profileResponse{
		ID:                s.ID,
		Status:            s.Phase.String(),
		NavigationEnabled: s.NavigationEnabled(),
	}

	if u, ok := s.User(); ok {
		u = sanitizer.SanitizeUser(u)
		resp.User = &userResponse{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			FullName:  u.FullName(),
			Avatar:    u.Avatar,
		}
	}

	if fetchErr := s.Err(); fetchErr != nil {
		body := middleware.NewFetchErrorBody(fetchErr)
		resp.Error = &body
	}

	return resp
}

// GetProfile は GET /api/profile のハンドラー。
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, newProfileResponse(h.ctrl.State(), h.sanitizer))
}

// DispatchAction は POST /api/profile/{action} のハンドラー。
// 遷移適用後の状態を返す。エラー表示中のnext/previousは無視され、現在の状態がそのまま返る。
func (h *ProfileHandler) DispatchAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.dispatch(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, newProfileResponse(s, h.sanitizer))
}

// dispatch はURLパラメータのアクションをコントローラに送る。
// 失敗時はエラーレスポンスを書き込み、falseを返す。
func (h *ProfileHandler) dispatch(w http.ResponseWriter, r *http.Request) (controller.State, bool) {
	name := chi.URLParam(r, "action")

	action, err := controller.ParseAction(name)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidActionError(name))
		return controller.State{}, false
	}

	s, err := h.ctrl.Dispatch(r.Context(), action)
	if err != nil {
		h.handleDispatchError(w, r, action, err)
		return controller.State{}, false
	}

	h.logger.Debug("アクションを処理しました",
		slog.String("action", action.String()),
		slog.Int("user_id", s.ID),
		slog.String("status", s.Phase.String()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	return s, true
}

// handleDispatchError はコントローラのエラーをHTTPレスポンスに変換する。
func (h *ProfileHandler) handleDispatchError(w http.ResponseWriter, r *http.Request, action controller.Action, err error) {
	switch {
	case errors.Is(err, controller.ErrUnknownAction):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidActionError(action.String()))
	case errors.Is(err, controller.ErrStopped):
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewControllerStoppedError())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// クライアントが切断済みのためレスポンスは書き込まない
		h.logger.Info("アクションの送信がキャンセルされました",
			slog.String("action", action.String()),
			slog.String("error", err.Error()),
		)
	default:
		h.logger.Error("internal server error",
			slog.String("action", action.String()),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// writeJSON はJSONレスポンスを書き込む。
// ステータス送信後は応答を変えられないため、書き込み失敗はログに残すのみ。
func writeJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, v any) {
	if err := middleware.WriteJSON(w, statusCode, v); err != nil {
		logger.Debug("レスポンスの書き込みに失敗しました",
			slog.Int("status", statusCode),
			slog.String("error", err.Error()),
		)
	}
}
