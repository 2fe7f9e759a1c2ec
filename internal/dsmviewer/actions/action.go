// Package actions implements the reversible edit commands of a DSM session, the
// undo/redo history that orders them and the catalog that turns persisted action
// records back into commands.
package actions

import (
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// Action is one user edit. Do applies it to the model and Undo reverses exactly
// that effect. Data is the flat record persisted with the model; it must be enough
// for the catalog factory of the same Type to rebuild an equivalent action.
type Action interface {
	Type() string
	Title() string
	Do() error
	Undo() error
	Data() map[string]string
}

func itoa(n int) string { return strconv.Itoa(n) }

func stringField(data map[string]string, key string) (string, error) {
	v, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidRecord, key)
	}
	return v, nil
}

func intField(data map[string]string, key string) (int, error) {
	v, err := stringField(data, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidRecord, key, v)
	}
	return n, nil
}

func boolField(data map[string]string, key string) (bool, error) {
	v, err := stringField(data, key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidRecord, key, v)
	}
	return b, nil
}

// lookupElement finds an element by id whether it is live or soft-deleted. Id 0
// is the root. A reloaded log refers to elements in the state after its last
// action, so a created element may since have been deleted and vice versa.
func lookupElement(m *model.Model, id int) *model.Element {
	el := m.Elements()
	if id == el.Root().ID() {
		return el.Root()
	}
	if e := el.FindElementByID(id); e != nil {
		return e
	}
	return el.FindDeletedElementByID(id)
}

func elementField(m *model.Model, data map[string]string, key string) (*model.Element, error) {
	id, err := intField(data, key)
	if err != nil {
		return nil, err
	}
	e := lookupElement(m, id)
	if e == nil {
		return nil, fmt.Errorf("%w: %s id=%d", ErrInvalidRecord, key, id)
	}
	return e, nil
}

func relationField(m *model.Model, data map[string]string, key string) (*model.Relation, error) {
	id, err := intField(data, key)
	if err != nil {
		return nil, err
	}
	rel := m.Relations()
	r := rel.FindRelationByID(id)
	if r == nil {
		r = rel.FindDeletedRelationByID(id)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s id=%d", ErrInvalidRecord, key, id)
	}
	return r, nil
}
