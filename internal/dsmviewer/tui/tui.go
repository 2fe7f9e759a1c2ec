// Package tui is a terminal viewer for an editing session: the element tree on
// the left, details or the matrix below, with keys for the history.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/application"
)

var (
	focusedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true)

	matchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c"))
)

const helpText = "enter expand · K/J move · d delete · u undo · r redo · S snapshot · s save · m matrix · q quit"

type item struct {
	info application.ElementInfo
}

func (i item) Title() string {
	marker := "•"
	if i.info.HasChildren {
		marker = "▸"
		if i.info.Expanded {
			marker = "▾"
		}
	}
	title := strings.Repeat("  ", i.info.Depth) + marker + " " + i.info.Name
	if i.info.Match {
		return matchStyle.Render(title)
	}
	return title
}

func (i item) Description() string {
	return strings.Repeat("  ", i.info.Depth) + "  " + i.info.Type
}

func (i item) FilterValue() string { return i.info.FullName }

type Model struct {
	app *application.Application

	list       list.Model
	viewport   viewport.Model
	showMatrix bool
	snapshots  int

	status string
	err    error

	ready  bool
	width  int
	height int
}

func NewModel(app *application.Application) Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = app.Root()
	l.SetShowHelp(false)
	m := Model{app: app, list: l}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// refresh reloads the rows from the session, keeping the selected element.
func (m *Model) refresh() {
	selected := 0
	if it, ok := m.list.SelectedItem().(item); ok {
		selected = it.info.ID
	}
	rows := m.app.Tree()
	items := make([]list.Item, len(rows))
	index := 0
	for i, row := range rows {
		items[i] = item{info: row}
		if row.ID == selected {
			index = i
		}
	}
	m.list.SetItems(items)
	m.list.Select(index)
}

func (m Model) selected() (application.ElementInfo, bool) {
	it, ok := m.list.SelectedItem().(item)
	return it.info, ok
}

// apply runs an edit against the selected element and reports the outcome.
func (m *Model) apply(done string, edit func(id int) error) {
	info, ok := m.selected()
	if !ok {
		return
	}
	m.report(edit(info.ID), fmt.Sprintf("%s %s", done, info.Name))
}

func (m *Model) report(err error, done string) {
	m.err = err
	if err == nil {
		m.status = done
	}
	m.refresh()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	// Edit keys are not forwarded: the list pages with d and u.
	handled := false
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		handled = true
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter", " ":
			m.apply("Toggled", func(id int) error {
				info, _ := m.selected()
				return m.app.SetExpanded(id, !info.Expanded)
			})
		case "K":
			m.apply("Moved up", m.app.MoveUp)
		case "J":
			m.apply("Moved down", m.app.MoveDown)
		case "d":
			m.apply("Deleted", m.app.DeleteElement)
		case "u":
			title, err := m.app.Undo()
			m.report(err, "Undone: "+title)
		case "r":
			title, err := m.app.Redo()
			m.report(err, "Redone: "+title)
		case "S":
			m.snapshots++
			name := fmt.Sprintf("snapshot-%d", m.snapshots)
			m.report(m.app.Snapshot(name), "Recorded "+name)
		case "s":
			m.report(m.app.Save(), "Saved")
		case "m":
			m.showMatrix = !m.showMatrix
		default:
			handled = false
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height/3)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height / 3
		}
		m.list.SetSize(msg.Width-2, msg.Height-m.viewport.Height-6)
	}

	if !handled {
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport.SetContent(m.renderDetails())
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	tree := focusedStyle.Render(m.list.View())
	details := detailStyle.Width(m.width - 4).Render(m.viewport.View())
	return lipgloss.JoinVertical(lipgloss.Left, tree, details, m.statusLine())
}

func (m Model) statusLine() string {
	if m.err != nil {
		return errorStyle.Render(m.err.Error())
	}
	st := m.app.Status()
	line := helpText
	if m.status != "" {
		line = m.status + " · " + line
	}
	if st.Dirty {
		line = "* " + line
	}
	if len(st.Stale) > 0 {
		line = fmt.Sprintf("sources changed (%d) · %s", len(st.Stale), line)
	}
	return statusStyle.Render(line)
}

func (m Model) renderDetails() string {
	if m.showMatrix {
		return m.app.MatrixText()
	}
	info, ok := m.selected()
	if !ok {
		return "No elements."
	}
	details, err := m.app.ElementDetails(info.ID)
	if err != nil {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID: %d\n", details.ID))
	sb.WriteString(fmt.Sprintf("Name: %s\n", details.FullName))
	if details.Type != "" {
		sb.WriteString(fmt.Sprintf("Type: %s\n", details.Type))
	}
	sb.WriteString(fmt.Sprintf("Internal relations: %d\n", details.Internal))

	sb.WriteString("\nProvides to:\n")
	for _, r := range details.Ingoing {
		sb.WriteString(fmt.Sprintf("<- %s (%s, %d)\n", r.Consumer, r.Type, r.Weight))
	}

	sb.WriteString("\nConsumes:\n")
	for _, r := range details.Outgoing {
		sb.WriteString(fmt.Sprintf("-> %s (%s, %d)\n", r.Provider, r.Type, r.Weight))
	}

	return sb.String()
}
