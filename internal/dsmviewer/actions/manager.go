package actions

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
)

// Manager keeps a linear edit history with a cursor. Actions before the cursor
// are applied, actions from the cursor on can be redone. A new edit discards the
// redo tail.
type Manager struct {
	history []Action
	cursor  int
	log     *logger.Logger
}

// NewManager creates an empty history.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{log: log}
}

// Add executes the action and records it. An action whose Do fails is not recorded.
func (m *Manager) Add(a Action) error {
	if err := a.Do(); err != nil {
		return fmt.Errorf("%s: %w", a.Title(), err)
	}
	m.push(a)
	m.log.Debug("Action done", "type", a.Type(), "title", a.Title(), "history", len(m.history))
	return nil
}

// Append records an action that is already reflected in the model, without
// calling Do. It is used when rebuilding the history of a loaded model.
func (m *Manager) Append(a Action) {
	m.push(a)
}

func (m *Manager) push(a Action) {
	m.history = append(m.history[:m.cursor], a)
	m.cursor = len(m.history)
}

// Undo reverses the most recently applied action.
func (m *Manager) Undo() error {
	if m.cursor == 0 {
		m.log.Warn("Undo requested with empty history")
		return ErrNothingToUndo
	}
	a := m.history[m.cursor-1]
	if err := a.Undo(); err != nil {
		return fmt.Errorf("undo %s: %w", a.Title(), err)
	}
	m.cursor--
	m.log.Debug("Action undone", "type", a.Type(), "title", a.Title())
	return nil
}

// Redo re-applies the action after the cursor.
func (m *Manager) Redo() error {
	if m.cursor == len(m.history) {
		m.log.Warn("Redo requested with nothing to redo")
		return ErrNothingToRedo
	}
	a := m.history[m.cursor]
	if err := a.Do(); err != nil {
		return fmt.Errorf("redo %s: %w", a.Title(), err)
	}
	m.cursor++
	m.log.Debug("Action redone", "type", a.Type(), "title", a.Title())
	return nil
}

func (m *Manager) CanUndo() bool { return m.cursor > 0 }

func (m *Manager) CanRedo() bool { return m.cursor < len(m.history) }

// UndoText describes the action Undo would reverse, or "" when there is none.
func (m *Manager) UndoText() string {
	if !m.CanUndo() {
		return ""
	}
	return m.history[m.cursor-1].Title()
}

// RedoText describes the action Redo would apply, or "" when there is none.
func (m *Manager) RedoText() string {
	if !m.CanRedo() {
		return ""
	}
	return m.history[m.cursor].Title()
}

// ActionsInChronologicalOrder returns the applied actions, oldest first. The redo
// tail is not part of the persisted history.
func (m *Manager) ActionsInChronologicalOrder() []Action {
	return append([]Action(nil), m.history[:m.cursor]...)
}

// Clear drops the whole history.
func (m *Manager) Clear() {
	m.history = nil
	m.cursor = 0
}

// Snapshots returns the applied snapshot actions, oldest first.
func (m *Manager) Snapshots() []*SnapshotAction {
	var snapshots []*SnapshotAction
	for _, a := range m.history[:m.cursor] {
		if s, ok := a.(*SnapshotAction); ok {
			snapshots = append(snapshots, s)
		}
	}
	return snapshots
}

// UndoToSnapshot undoes every action applied after the most recent snapshot with
// the given name. The undone actions stay available for redo.
func (m *Manager) UndoToSnapshot(name string) error {
	target := -1
	for i := m.cursor - 1; i >= 0; i-- {
		if s, ok := m.history[i].(*SnapshotAction); ok && s.Name() == name {
			target = i
			break
		}
	}
	if target < 0 {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}
	for m.cursor > target+1 {
		if err := m.Undo(); err != nil {
			return err
		}
	}
	return nil
}
