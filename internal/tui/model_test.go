package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/profileman/internal/controller"
	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/security"
)

// fakeDispatcher は送信されたアクションを記録する。
type fakeDispatcher struct {
	mu      sync.Mutex
	actions []controller.Action
	err     error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, a controller.Action) (controller.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return controller.State{}, f.err
}

func (f *fakeDispatcher) sent() []controller.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]controller.Action(nil), f.actions...)
}

var janet = model.User{
	ID:        2,
	Email:     "janet.weaver@reqres.in",
	FirstName: "Janet",
	LastName:  "Weaver",
	Avatar:    "https://reqres.in/img/faces/2-image.jpg",
}

func stateWith(outcome model.Outcome) controller.State {
	s, _ := controller.Reduce(controller.InitialState(), controller.ActionLoad)
	s, _ = controller.Reduce(s, controller.FetchTriggered{ID: s.ID})
	s, _ = controller.Reduce(s, controller.FetchCompleted{Seq: s.Seq, Outcome: outcome})
	return s
}

func newTestModel(states chan controller.State) (Model, *fakeDispatcher) {
	d := &fakeDispatcher{}
	return NewModel(context.Background(), d, states, security.NewProfileSanitizer()), d
}

func keyRunes(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// withState はstateMsgを適用したモデルを返す。
func withState(t *testing.T, m Model, s controller.State) Model {
	t.Helper()
	updated, _ := m.Update(stateMsg{state: s})
	return updated.(Model)
}

func TestModelInit_DispatchesLoad(t *testing.T) {
	states := make(chan controller.State, 1)
	states <- controller.InitialState()
	m, d := newTestModel(states)

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init should return a command")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("Init command should produce a BatchMsg")
	}

	var gotState bool
	for _, c := range batch {
		if c == nil {
			continue
		}
		if _, ok := c().(stateMsg); ok {
			gotState = true
		}
	}

	if !gotState {
		t.Error("Init should listen for state updates")
	}
	if got := d.sent(); len(got) != 1 || got[0] != controller.ActionLoad {
		t.Errorf("actions = %v, want [load]", got)
	}
}

func TestModelView_Loading(t *testing.T) {
	m, _ := newTestModel(nil)

	view := m.View()
	if !strings.Contains(view, "Loading") {
		t.Errorf("loading view should contain 'Loading':\n%s", view)
	}
	if !strings.Contains(view, "#1") {
		t.Errorf("view should show the current id:\n%s", view)
	}
}

func TestModelView_Loaded(t *testing.T) {
	m, _ := newTestModel(nil)
	m = withState(t, m, stateWith(model.OK(janet)))

	view := m.View()
	for _, want := range []string{"Janet Weaver", "janet.weaver@reqres.in", "2-image.jpg"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q:\n%s", want, view)
		}
	}
}

func TestModelView_Failed(t *testing.T) {
	m, _ := newTestModel(nil)
	m = withState(t, m, stateWith(model.Failed(model.NewNotFoundError(nil))))

	view := m.View()
	if !strings.Contains(view, "The User doesn't exist, refresh and Try Again!!!") {
		t.Errorf("view should contain the error message:\n%s", view)
	}
}

func TestModelUpdate_StateMsgKeepsListening(t *testing.T) {
	states := make(chan controller.State, 1)
	m, _ := newTestModel(states)

	updated, cmd := m.Update(stateMsg{state: stateWith(model.OK(janet))})
	if updated.(Model).state.Phase != controller.PhaseLoaded {
		t.Error("state should be updated")
	}
	if cmd == nil {
		t.Fatal("should continue listening for state")
	}

	states <- controller.InitialState()
	if _, ok := cmd().(stateMsg); !ok {
		t.Error("listen command should deliver the next state")
	}
}

func TestModelUpdate_ClosedStatesQuits(t *testing.T) {
	states := make(chan controller.State)
	close(states)
	m, _ := newTestModel(states)

	msg := listenForState(states)()
	if _, ok := msg.(stateClosedMsg); !ok {
		t.Fatalf("msg = %T, want stateClosedMsg", msg)
	}

	_, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatal("closed state channel should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
}

func TestModelKeys_Navigation(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want controller.Action
	}{
		{"right", tea.KeyMsg{Type: tea.KeyRight}, controller.ActionNext},
		{"l", keyRunes('l'), controller.ActionNext},
		{"left", tea.KeyMsg{Type: tea.KeyLeft}, controller.ActionPrevious},
		{"h", keyRunes('h'), controller.ActionPrevious},
		{"r", keyRunes('r'), controller.ActionRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, d := newTestModel(nil)
			m = withState(t, m, stateWith(model.OK(janet)))

			_, cmd := m.Update(tt.msg)
			if cmd == nil {
				t.Fatal("key should return a command")
			}
			cmd()

			if got := d.sent(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("actions = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestModelKeys_NavigationDisabledWhileFailed(t *testing.T) {
	m, d := newTestModel(nil)
	m = withState(t, m, stateWith(model.Failed(model.NewServerFailureError(nil))))

	for _, msg := range []tea.KeyMsg{keyRunes('l'), keyRunes('h'), {Type: tea.KeyRight}} {
		if _, cmd := m.Update(msg); cmd != nil {
			t.Errorf("%s should be ignored while failed", msg)
		}
	}

	_, cmd := m.Update(keyRunes('r'))
	if cmd == nil {
		t.Fatal("refresh should stay available")
	}
	cmd()

	if got := d.sent(); len(got) != 1 || got[0] != controller.ActionRefresh {
		t.Errorf("actions = %v, want [refresh]", got)
	}
}

func TestModelKeys_Quit(t *testing.T) {
	m, _ := newTestModel(nil)

	for _, msg := range []tea.KeyMsg{keyRunes('q'), {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("%s should return a command", msg)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected QuitMsg", msg)
		}
	}
}

func TestModelUpdate_DispatchError(t *testing.T) {
	m, d := newTestModel(nil)
	d.err = controller.ErrStopped

	_, cmd := m.Update(keyRunes('r'))
	msg := cmd()

	updated, _ := m.Update(msg)
	view := updated.(Model).View()
	if !errors.Is(updated.(Model).err, controller.ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", updated.(Model).err)
	}
	if !strings.Contains(view, "stopped") {
		t.Errorf("view should show the dispatch error:\n%s", view)
	}
}

func TestModelUpdate_SpinnerTick(t *testing.T) {
	m, _ := newTestModel(nil)

	tick := m.spinner.Tick()
	if _, ok := tick.(spinner.TickMsg); !ok {
		t.Fatalf("Tick() = %T, want spinner.TickMsg", tick)
	}
	if _, cmd := m.Update(tick); cmd == nil {
		t.Error("spinner tick should schedule the next tick")
	}
}
