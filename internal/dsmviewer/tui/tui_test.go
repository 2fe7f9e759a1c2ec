package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/application"
)

func newApp(t *testing.T) *application.Application {
	t.Helper()
	root := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "core"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/app\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "core", "core.go"), []byte("package core\n\ntype Service struct{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "web", "web.go"), []byte("package web\n\nimport \"example.com/app/core\"\n\nvar S core.Service\n"), 0o644))

	app, err := application.Open(context.Background(), root, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTreeNavigationAndHistory(t *testing.T) {
	app := newApp(t)
	m := NewModel(app)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	assert.Contains(t, m.View(), "app")

	// Expand the project element and select web.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, m.list.Items(), 3)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	info, ok := m.selected()
	require.True(t, ok)
	require.Equal(t, "web", info.Name)

	m = press(t, m, runes("K"))
	require.NoError(t, m.err)
	assert.Equal(t, "web", m.list.Items()[1].(item).info.Name)
	info, _ = m.selected()
	assert.Equal(t, "web", info.Name, "selection follows the moved element")

	m = press(t, m, runes("u"))
	require.NoError(t, m.err)
	assert.Equal(t, "core", m.list.Items()[1].(item).info.Name)
	assert.Contains(t, m.status, "Undone")

	m = press(t, m, runes("r"), runes("S"), runes("d"))
	require.NoError(t, m.err)
	assert.Len(t, m.list.Items(), 2)
	assert.Len(t, app.History(), 3)

	m = press(t, m, runes("s"))
	require.NoError(t, m.err)
	assert.False(t, app.Status().Dirty)
}

func TestErrorsAreShown(t *testing.T) {
	app := newApp(t)
	m := NewModel(app)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)

	m = press(t, m, runes("r"))
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "nothing to redo")
}

func TestMatrixToggle(t *testing.T) {
	app := newApp(t)
	m := NewModel(app)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}, runes("m"))
	assert.True(t, m.showMatrix)
	assert.Contains(t, m.renderDetails(), "core")
	assert.Contains(t, m.renderDetails(), "web")

	m = press(t, m, runes("m"))
	assert.Contains(t, m.renderDetails(), "Name: app")
}
