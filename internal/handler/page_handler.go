package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/profileman/internal/controller"
)

// pageTemplate はプロフィール画面のHTML。読み込み中は1秒ごとに自動で再読み込みする。
var pageTemplate = template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{- if eq .Status "loading"}}
<meta http-equiv="refresh" content="1">
{{- end}}
<title>Profileman</title>
<style>
body { font-family: sans-serif; display: flex; justify-content: center; margin-top: 4rem; }
main { text-align: center; min-width: 20rem; }
img { border-radius: 50%; }
.error { color: #b00020; }
nav { display: flex; gap: 1rem; justify-content: center; margin-top: 2rem; }
nav form { margin: 0; }
</style>
</head>
<body>
<main>
{{- if .User}}
<img src="{{.User.Avatar}}" alt="" width="128" height="128">
<h1>{{.User.FullName}}</h1>
<p><a href="{{.MailTo}}">{{.User.Email}}</a></p>
{{- else if .Error}}
<p class="error">{{.Error.Message}}</p>
{{- else}}
<p class="loading">Loading…</p>
{{- end}}
<nav>
<form method="post" action="/profile/previous"><button type="submit"{{if not .NavigationEnabled}} disabled{{end}}>Previous</button></form>
<form method="post" action="/profile/refresh"><button type="submit">Refresh</button></form>
<form method="post" action="/profile/next"><button type="submit"{{if not .NavigationEnabled}} disabled{{end}}>Next</button></form>
</nav>
</main>
</body>
</html>
`))

// pageData はテンプレートに渡す表示データ。
type pageData struct {
	profileResponse
	MailTo string
}

// newPageData は状態ビューからテンプレート用のデータを生成する。
func newPageData(resp profileResponse) pageData {
	data := pageData{profileResponse: resp}
	if resp.User != nil && resp.User.Email != "" {
		data.MailTo = (&url.URL{Scheme: "mailto", Opaque: resp.User.Email}).String()
	}
	return data
}

// ShowPage は GET / のハンドラー。現在の状態をHTMLで描画する。
func (h *ProfileHandler) ShowPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, h.ctrl.State())
}

// SubmitAction は POST /profile/{action} のハンドラー。
// アクションを送信した後、GET / へリダイレクトする。
func (h *ProfileHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.dispatch(w, r); !ok {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ProfileHandler) renderPage(w http.ResponseWriter, s controller.State) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, newPageData(newProfileResponse(s, h.sanitizer))); err != nil {
		h.logger.Error("プロフィール画面の描画に失敗しました", slog.String("error", err.Error()))
	}
}
