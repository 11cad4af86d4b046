// Package tui はプロフィールコントローラのターミナル表示層を提供する。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/profileman/internal/controller"
	"github.com/hitoshi/profileman/internal/model"
)

// Dispatcher はTUIがアクションを送る先のコントローラ。
type Dispatcher interface {
	Dispatch(ctx context.Context, action controller.Action) (controller.State, error)
}

// UserSanitizer は表示前にユーザー情報を無害化する。
type UserSanitizer interface {
	SanitizeUser(u model.User) model.User
}

// stateMsg はコントローラから通知された新しい状態。
type stateMsg struct {
	state controller.State
}

// stateClosedMsg は状態の購読チャネルがクローズされたことを示す。
type stateClosedMsg struct{}

// dispatchErrMsg はアクション送信の失敗。
type dispatchErrMsg struct {
	err error
}

// Model はbubbleteaのモデル。状態は購読チャネル経由でのみ更新する。
type Model struct {
	ctx       context.Context
	ctrl      Dispatcher
	states    <-chan controller.State
	sanitizer UserSanitizer
	keys      KeyMap
	spinner   spinner.Model

	state controller.State
	err   error
}

// NewModel は新しいModelを生成する。statesにはController.Subscribeのチャネルを渡す。
func NewModel(ctx context.Context, ctrl Dispatcher, states <-chan controller.State, sanitizer UserSanitizer) Model {
	return Model{
		ctx:       ctx,
		ctrl:      ctrl,
		states:    states,
		sanitizer: sanitizer,
		keys:      DefaultKeyMap,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:     controller.InitialState(),
	}
}

// Init はtea.Modelを実装する。初回表示時にActionLoadを送信し、状態の購読を開始する。
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForState(m.states),
		m.dispatch(controller.ActionLoad),
		m.spinner.Tick,
	)
}

// listenForState は状態が通知されるまでブロックし、stateMsgとして返すtea.Cmdを生成する。
func listenForState(states <-chan controller.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return stateClosedMsg{}
		}
		return stateMsg{state: s}
	}
}

// dispatch はアクションを送信するtea.Cmdを生成する。
// 遷移後の状態は購読チャネルから届くため、ここではエラーのみを返す。
func (m Model) dispatch(action controller.Action) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		if _, err := ctrl.Dispatch(ctx, action); err != nil {
			return dispatchErrMsg{err: err}
		}
		return nil
	}
}

// Update はtea.Modelを実装する。
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = msg.state
		m.err = nil
		return m, listenForState(m.states)

	case stateClosedMsg:
		return m, tea.Quit

	case dispatchErrMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		return m, m.dispatch(controller.ActionRefresh)

	case key.Matches(msg, m.keys.Next):
		// エラー表示中はボタンと同様に無効
		if !m.state.NavigationEnabled() {
			return m, nil
		}
		return m, m.dispatch(controller.ActionNext)

	case key.Matches(msg, m.keys.Previous):
		if !m.state.NavigationEnabled() {
			return m, nil
		}
		return m, m.dispatch(controller.ActionPrevious)
	}

	return m, nil
}

// View はtea.Modelを実装する。
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Profileman  #%d", m.state.ID)))
	b.WriteString("\n")
	b.WriteString(cardStyle.Render(m.content()))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.help())
	b.WriteString("\n")

	return b.String()
}

// content は状態に応じたカードの中身を返す。
func (m Model) content() string {
	switch m.state.Phase {
	case controller.PhaseLoaded:
		u, _ := m.state.User()
		u = m.sanitizer.SanitizeUser(u)
		lines := []string{
			nameStyle.Render(u.FullName()),
			labelStyle.Render("email  ") + u.Email,
		}
		if u.Avatar != "" {
			lines = append(lines, labelStyle.Render("avatar ")+u.Avatar)
		}
		return strings.Join(lines, "\n")

	case controller.PhaseFailed:
		msg, _ := m.state.ErrorMessage()
		return errorStyle.Render(msg)

	default:
		return m.spinner.View() + " Loading…"
	}
}

// help はキー操作の説明を返す。エラー表示中のnext/previousは無効として表示する。
func (m Model) help() string {
	enabled := m.state.NavigationEnabled()
	items := []string{
		m.helpItem(m.keys.Previous, enabled),
		m.helpItem(m.keys.Next, enabled),
		m.helpItem(m.keys.Refresh, true),
		m.helpItem(m.keys.Quit, true),
	}
	return strings.Join(items, " • ")
}

func (m Model) helpItem(binding key.Binding, enabled bool) string {
	h := binding.Help()
	text := h.Key + " " + h.Desc
	if !enabled {
		return disabledStyle.Render(text)
	}
	return helpKeyStyle.Render(text)
}
