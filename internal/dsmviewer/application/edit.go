package application

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/actions"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// run executes an action through the history. Callers hold the lock.
func (a *Application) run(action actions.Action) error {
	if err := a.manager.Add(action); err != nil {
		return err
	}
	a.afterChange()
	return nil
}

func (a *Application) afterChange() {
	a.dirty = true
	for _, ev := range a.model.Elements().DrainEvents() {
		a.log.Debug("Element event", "kind", ev.Kind, "id", ev.ElementID)
	}
}

// element resolves a live element an edit applies to. The invisible root is never
// a target.
func (a *Application) element(id int) (*model.Element, error) {
	if e := a.model.Elements().FindElementByID(id); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: element id=%d", model.ErrNotFound, id)
}

// parent resolves an element whose children an edit changes; id 0 is the root.
func (a *Application) parent(id int) (*model.Element, error) {
	if id == 0 {
		return a.model.Elements().Root(), nil
	}
	return a.element(id)
}

func (a *Application) relation(id int) (*model.Relation, error) {
	if r := a.model.Relations().FindRelationByID(id); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: relation id=%d", model.ErrNotFound, id)
}

// CreateElement adds an element below parentID (0 for a root element).
func (a *Application) CreateElement(name, typ string, parentID int) (ElementInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	action := actions.NewElementCreateAction(a.model, name, typ, parentID)
	if err := a.run(action); err != nil {
		return ElementInfo{}, err
	}
	e := action.Element()
	return describe(e, depthOf(e)), nil
}

func (a *Application) DeleteElement(id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementDeleteAction(a.model, e))
}

func (a *Application) RenameElement(id int, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementChangeNameAction(a.model, e, name))
}

func (a *Application) ChangeElementType(id int, typ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementChangeTypeAction(a.model, e, typ))
}

// MoveElement reparents an element; parentID 0 moves it to the top level.
func (a *Application) MoveElement(id, parentID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	parent, err := a.parent(parentID)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementChangeParentAction(a.model, e, parent))
}

func (a *Application) MoveUp(id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementMoveUpAction(a.model, e))
}

func (a *Application) MoveDown(id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementMoveDownAction(a.model, e))
}

// Partition reorders the visible children of id with a permutation; id 0 reorders
// the top-level elements.
func (a *Application) Partition(id int, sequence []int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.parent(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewElementPartitionAction(a.model, e, sequence))
}

// CreateRelation adds a relation or merges weight into an existing one.
func (a *Application) CreateRelation(consumerID, providerID int, typ string, weight int, context string) (RelationInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	action := actions.NewRelationCreateAction(a.model, consumerID, providerID, typ, weight, context)
	if err := a.run(action); err != nil {
		return RelationInfo{}, err
	}
	return a.relationInfos([]*model.Relation{action.Relation()})[0], nil
}

func (a *Application) DeleteRelation(id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.relation(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewRelationDeleteAction(a.model, r))
}

func (a *Application) ChangeRelationType(id int, typ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.relation(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewRelationChangeTypeAction(a.model, r, typ))
}

func (a *Application) ChangeRelationWeight(id, weight int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.relation(id)
	if err != nil {
		return err
	}
	return a.run(actions.NewRelationChangeWeightAction(a.model, r, weight))
}

// Snapshot records a named point in the history.
func (a *Application) Snapshot(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run(actions.NewSnapshotAction(a.model, name))
}

// UndoToSnapshot undoes every action taken after the named snapshot.
func (a *Application) UndoToSnapshot(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.manager.UndoToSnapshot(name); err != nil {
		return err
	}
	a.afterChange()
	return nil
}

// Undo reverts the latest applied action and returns its title.
func (a *Application) Undo() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	title := a.manager.UndoText()
	if err := a.manager.Undo(); err != nil {
		return "", err
	}
	a.afterChange()
	return title, nil
}

// Redo reapplies the next undone action and returns its title.
func (a *Application) Redo() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	title := a.manager.RedoText()
	if err := a.manager.Redo(); err != nil {
		return "", err
	}
	a.afterChange()
	return title, nil
}

// SetExpanded toggles the expansion of an element. Expansion is view state and
// never enters the history.
func (a *Application) SetExpanded(id int, expanded bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	a.model.Elements().SetExpanded(e, expanded)
	return nil
}

// SetIncludedInTree hides or shows an element. A hidden element leaves the tree and
// the matrix but keeps its relations. Like expansion it is view state.
func (a *Application) SetIncludedInTree(id int, included bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.element(id)
	if err != nil {
		return err
	}
	if err := a.model.Elements().SetIncludedInTree(e, included); err != nil {
		return err
	}
	a.dirty = true
	return nil
}
