// Package tui is the interactive fault browser: one column per category
// level, the fault table of the open category and the selected fault in
// detail.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	md "github.com/jcdickinson/faultbook/internal/markdown"
	"github.com/jcdickinson/faultbook/internal/nav"
	"github.com/jcdickinson/faultbook/internal/rpc"
)

type sessionMsg struct {
	resp *rpc.SessionResponse
}

type failedMsg struct {
	err error
	// fatal failures replace the browser with the error screen.
	fatal bool
}

type Model struct {
	backend Backend
	render  func(src string, width int) (string, error)
	timeout time.Duration

	id     string
	view   *nav.View
	fatal  error
	status string
	busy   bool

	// column is the focused column: 0 to len(Levels)-1 are category
	// levels, len(Levels) is the fault table.
	column  int
	cursors map[int]int
	result  int

	input  textinput.Model
	detail viewport.Model
	width  int
	height int
}

func New(backend Backend) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search categories and faults"
	ti.Cursor.SetMode(cursor.CursorStatic)

	return Model{
		backend: backend,
		render:  md.Terminal,
		timeout: 30 * time.Second,
		busy:    true,
		cursors: make(map[int]int),
		input:   ti,
		detail:  viewport.New(80, 10),
	}
}

func (m Model) Init() tea.Cmd {
	return m.connect()
}

func (m Model) connect() tea.Cmd {
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := backend.CreateSession(ctx)
		if err != nil {
			return failedMsg{err: err, fatal: true}
		}
		return sessionMsg{resp: resp}
	}
}

// start applies op to the session in the background. Keys other than quit
// are ignored until it finishes.
func (m Model) start(op func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error)) (tea.Model, tea.Cmd) {
	m.busy = true
	backend, id, timeout := m.backend, m.id, m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := op(ctx, backend, id)
		if err != nil {
			return failedMsg{err: err}
		}
		return sessionMsg{resp: resp}
	}
}

// Close drops the session on the backend.
func (m Model) Close(ctx context.Context) error {
	if m.id == "" {
		return nil
	}
	return m.backend.DeleteSession(ctx, m.id)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.detail.Width = max(msg.Width, 20)
		m.detail.Height = max(msg.Height/2-2, 5)
		m.refreshDetail()
		return m, nil

	case sessionMsg:
		m.busy = false
		m.fatal = nil
		m.status = ""
		m.id = msg.resp.ID
		m.apply(msg.resp.View)
		return m, nil

	case failedMsg:
		m.busy = false
		if msg.fatal {
			m.fatal = msg.err
		} else {
			m.status = msg.err.Error()
		}
		slog.Warn("tui: operation failed", "error", msg.err, "fatal", msg.fatal)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply installs a fresh view and keeps the cursors inside it.
func (m *Model) apply(v *nav.View) {
	m.view = v
	m.column = min(m.column, len(v.Levels))

	for _, level := range v.Levels {
		c := m.cursors[level.Depth]
		for i, item := range level.Items {
			if item.Active {
				c = i
			}
		}
		m.cursors[level.Depth] = clamp(c, len(level.Items))
	}
	m.result = clamp(m.result, len(v.Results))
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	if m.view == nil || m.view.Detail == nil {
		m.detail.SetContent("")
		return
	}
	src := md.Fault(m.view.Detail)
	out, err := m.render(src, m.detail.Width)
	if err != nil {
		out = src
	}
	m.detail.SetContent(out)
	m.detail.GotoTop()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			m.input.Blur()
			query := m.input.Value()
			m.result = 0
			return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
				return b.SubmitSearch(ctx, id, query)
			})
		case tea.KeyEsc:
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.fatal != nil {
		switch msg.String() {
		case "r":
			m.busy = true
			m.status = ""
			return m, m.connect()
		case "q", "esc":
			return m, tea.Quit
		}
		return m, nil
	}

	if msg.String() == "q" {
		return m, tea.Quit
	}
	if m.view == nil || m.busy {
		return m, nil
	}

	switch msg.String() {
	case "/":
		m.input.Focus()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	if m.view.SearchMode {
		return m.handleResultKey(msg)
	}
	return m.handleBrowseKey(msg)
}

func (m Model) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.result = clamp(m.result-1, len(m.view.Results))
	case "down", "j":
		m.result = clamp(m.result+1, len(m.view.Results))
	case "enter":
		if len(m.view.Results) == 0 {
			return m, nil
		}
		index := m.result
		m.column = len(m.view.Results[index].Path)
		m.input.SetValue("")
		return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
			return b.SelectSearchResult(ctx, id, index)
		})
	case "esc":
		m.input.SetValue("")
		return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
			return b.ResetSearch(ctx, id)
		})
	}
	return m, nil
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	levels := m.view.Levels
	onFaults := m.column >= len(levels)

	switch msg.String() {
	case "up", "k", "down", "j":
		delta := 1
		if msg.String() == "up" || msg.String() == "k" {
			delta = -1
		}
		if onFaults {
			index := clamp(m.view.Selected+delta, len(m.view.Faults))
			if index == m.view.Selected || len(m.view.Faults) == 0 {
				return m, nil
			}
			return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
				return b.SelectFault(ctx, id, index)
			})
		}
		level := levels[m.column]
		m.cursors[level.Depth] = clamp(m.cursors[level.Depth]+delta, len(level.Items))

	case "left", "h":
		m.column = max(m.column-1, 0)

	case "tab":
		if len(m.view.Faults) > 0 {
			m.column = len(levels)
		}

	case "right", "l", "enter":
		if onFaults {
			return m, nil
		}
		level := levels[m.column]
		if len(level.Items) == 0 {
			return m, nil
		}
		index := m.cursors[level.Depth]
		req := rpc.SelectChildRequest{Level: level.Depth, Index: &index}
		m.column++
		return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
			return b.SelectChild(ctx, id, req)
		})

	case "backspace":
		if len(m.view.Breadcrumb) == 0 {
			return m, nil
		}
		index := len(m.view.Breadcrumb) - 2
		m.column = index + 1
		return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
			return b.SelectBreadcrumb(ctx, id, index)
		})

	case "H", "home":
		m.column = 0
		return m.start(func(ctx context.Context, b Backend, id string) (*rpc.SessionResponse, error) {
			return b.SelectBreadcrumb(ctx, id, -1)
		})
	}
	return m, nil
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	return min(i, n-1)
}
