package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/rpc"
)

const testRoot = `{"categories":[
	{"name":"Network","notice":"check cables","faults":[
		{"code":"E1","title":"Timeout","severity":"high"},
		{"code":"E2","title":"DNS failure","severity":"low"}
	],"subcategories":[{"name":"Wireless","faults":[{"code":"W1","name":"Weak signal"}]}]},
	{"name":"Storage","file":"storage.json"},
	{"name":"Broken","file":"missing.json"}
]}`

const testStorage = `{"categories":[{"name":"Disk","faults":[{"code":"D1","title":"Disk full","severity":"中"}]}]}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newLocal(t *testing.T, withRoot bool) (*Local, string) {
	t.Helper()
	dir := t.TempDir()
	if withRoot {
		writeFile(t, dir, "categories.json", testRoot)
	}
	writeFile(t, dir, "storage.json", testStorage)
	return NewLocal(kb.NewStore(kb.DirSource{Dir: dir}, "")), dir
}

func plain(src string, _ int) (string, error) { return src, nil }

func start(t *testing.T, backend Backend) Model {
	t.Helper()
	m := New(backend)
	m.render = plain
	return feed(t, m, m.Init())
}

// feed runs backend commands synchronously and delivers their results.
func feed(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		switch msg.(type) {
		case sessionMsg, failedMsg:
		default:
			return m
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(keyMsg(k))
		m = feed(t, next.(Model), cmd)
	}
	return m
}

func crumbs(m Model) []string {
	var out []string
	for _, c := range m.view.Breadcrumb {
		out = append(out, c.ID)
	}
	return out
}

func TestModel_Loads(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	if m.busy || m.fatal != nil {
		t.Fatalf("busy=%v fatal=%v", m.busy, m.fatal)
	}
	if len(m.view.Levels) != 1 || len(m.view.Levels[0].Items) != 3 {
		t.Fatalf("levels = %+v", m.view.Levels)
	}
	out := m.View()
	for _, want := range []string{"Categories", "Network ▸", "Storage ▸", "Home"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestModel_NavigateColumns(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	m = press(t, m, "down", "enter")
	if diff := cmp.Diff([]string{"Storage"}, crumbs(m)); diff != "" {
		t.Fatalf("breadcrumb mismatch (-want +got):\n%s", diff)
	}
	if m.column != 1 || len(m.view.Levels) != 2 || m.view.Levels[1].Items[0].Name != "Disk" {
		t.Fatalf("column=%d levels=%+v", m.column, m.view.Levels)
	}

	m = press(t, m, "right")
	if diff := cmp.Diff([]string{"Storage", "Disk"}, crumbs(m)); diff != "" {
		t.Fatalf("breadcrumb mismatch (-want +got):\n%s", diff)
	}
	if m.column != len(m.view.Levels) {
		t.Errorf("a leaf should focus the fault table, column=%d", m.column)
	}
	out := m.View()
	for _, want := range []string{"Home › Storage › Disk", "D1 Disk full", "## D1: Disk full"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	m = press(t, m, "backspace")
	if diff := cmp.Diff([]string{"Storage"}, crumbs(m)); diff != "" {
		t.Errorf("backspace mismatch (-want +got):\n%s", diff)
	}

	m = press(t, m, "H")
	if len(m.view.Breadcrumb) != 0 || m.column != 0 {
		t.Errorf("home: breadcrumb=%v column=%d", crumbs(m), m.column)
	}
	if m.cursors[1] != 1 {
		t.Errorf("cursor should stay on Storage, got %d", m.cursors[1])
	}
}

func TestModel_FailedExternalShowsEmptyLevel(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	m = press(t, m, "down", "down", "enter")
	if diff := cmp.Diff([]string{"Broken"}, crumbs(m)); diff != "" {
		t.Fatalf("breadcrumb mismatch (-want +got):\n%s", diff)
	}
	if m.status != "" || len(m.view.Levels) != 2 || len(m.view.Levels[1].Items) != 0 {
		t.Errorf("status=%q levels=%+v", m.status, m.view.Levels)
	}
	out := m.View()
	for _, want := range []string{"No subcategories", "No faults recorded"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestModel_FaultSelection(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	m = press(t, m, "enter", "tab")
	if m.column != len(m.view.Levels) {
		t.Fatalf("tab should focus the fault table, column=%d", m.column)
	}
	if !strings.Contains(m.View(), "check cables") {
		t.Errorf("notice not shown")
	}

	m = press(t, m, "down")
	if m.view.Selected != 1 || m.view.Detail.Code != "E2" {
		t.Fatalf("selected=%d detail=%+v", m.view.Selected, m.view.Detail)
	}
	m = press(t, m, "down")
	if m.view.Selected != 1 {
		t.Errorf("selection should stop at the last fault, got %d", m.view.Selected)
	}
	m = press(t, m, "up", "left")
	if m.view.Selected != 0 || m.column != 1 {
		t.Errorf("selected=%d column=%d", m.view.Selected, m.column)
	}
}

func TestModel_Search(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	m = press(t, m, "/", "q")
	if !m.input.Focused() || m.input.Value() != "q" {
		t.Fatalf("typing in the search box should not quit: %q", m.input.Value())
	}
	m.input.SetValue("")

	m = press(t, m, "dns", "enter")
	if !m.view.SearchMode || len(m.view.Results) != 1 || m.view.Results[0].Name != "Network" {
		t.Fatalf("results = %+v", m.view.Results)
	}

	m = press(t, m, "enter")
	if m.view.SearchMode {
		t.Fatal("selecting a result should leave search mode")
	}
	if diff := cmp.Diff([]string{"Network"}, crumbs(m)); diff != "" {
		t.Errorf("breadcrumb mismatch (-want +got):\n%s", diff)
	}

	m = press(t, m, "/", "zzz", "enter")
	if !strings.Contains(m.View(), `No matches for "zzz"`) {
		t.Errorf("empty results not shown:\n%s", m.View())
	}
	m = press(t, m, "esc")
	if m.view.SearchMode || m.view.Query != "" || m.input.Value() != "" {
		t.Errorf("esc should reset the search: %+v", m.view)
	}
}

func TestModel_ErrorScreenAndRetry(t *testing.T) {
	t.Parallel()
	local, dir := newLocal(t, false)
	m := start(t, local)

	var loadErr *kb.LoadError
	if !errors.As(m.fatal, &loadErr) {
		t.Fatalf("expected a load error, got %v", m.fatal)
	}
	if !strings.Contains(m.View(), "Knowledge base unavailable") {
		t.Errorf("error screen not shown:\n%s", m.View())
	}

	writeFile(t, dir, "categories.json", testRoot)
	m = press(t, m, "r")
	if m.fatal != nil || m.view == nil || len(m.view.Levels[0].Items) != 3 {
		t.Fatalf("retry did not load: fatal=%v", m.fatal)
	}
}

func TestModel_OperationErrorKeepsView(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	if err := m.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := m.view
	m = press(t, m, "enter")
	if !strings.Contains(m.status, "no such session") || m.view != before || m.busy {
		t.Errorf("status=%q busy=%v", m.status, m.busy)
	}
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	for _, k := range []tea.KeyMsg{keyMsg("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(k)
		if cmd == nil {
			t.Fatalf("%s: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s should quit", k)
		}
	}
}

func TestModel_WindowSize(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	m := start(t, local)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	if m.detail.Width != 120 || m.detail.Height != 18 {
		t.Errorf("detail = %dx%d", m.detail.Width, m.detail.Height)
	}
}

func TestLocal_SelectByName(t *testing.T) {
	t.Parallel()
	local, _ := newLocal(t, true)
	ctx := context.Background()

	sess, err := local.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sess, err = local.SelectChild(ctx, sess.ID, rpc.SelectChildRequest{Level: 1, Name: "Storage"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.View.Levels) != 2 {
		t.Errorf("levels = %+v", sess.View.Levels)
	}
	if _, err := local.SelectChild(ctx, sess.ID, rpc.SelectChildRequest{Level: 5, Name: "x"}); err == nil {
		t.Error("expected invalid level error")
	}
	if err := local.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if err := local.DeleteSession(ctx, sess.ID); !errors.Is(err, errNoSession) {
		t.Errorf("second delete = %v", err)
	}
}
