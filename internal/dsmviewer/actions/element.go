package actions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// Type tags of the element actions, as persisted in action records.
const (
	ElementCreateType       = "elementCreate"
	ElementDeleteType       = "elementDelete"
	ElementChangeNameType   = "elementChangeName"
	ElementChangeTypeType   = "elementChangeType"
	ElementChangeParentType = "elementChangeParent"
	ElementMoveUpType       = "elementMoveUp"
	ElementMoveDownType     = "elementMoveDown"
	ElementPartitionType    = "elementPartition"
)

// ElementCreateAction adds a new element. Redo brings back the element created by
// the first Do so its id stays stable.
type ElementCreateAction struct {
	model          *model.Model
	name           string
	typ            string
	parentID       int
	element        *model.Element
	parentExpanded bool
}

func NewElementCreateAction(m *model.Model, name, typ string, parentID int) *ElementCreateAction {
	return &ElementCreateAction{model: m, name: name, typ: typ, parentID: parentID}
}

func loadElementCreate(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	parentID, err := intField(data, "parent")
	if err != nil {
		return nil, err
	}
	return &ElementCreateAction{model: m, name: data["name"], typ: data["type"], parentID: parentID, element: e}, nil
}

func (a *ElementCreateAction) Type() string { return ElementCreateType }

func (a *ElementCreateAction) Title() string { return fmt.Sprintf("Create element %s", a.name) }

// Element returns the created element, or nil before the first Do.
func (a *ElementCreateAction) Element() *model.Element { return a.element }

func (a *ElementCreateAction) Do() error {
	el := a.model.Elements()
	if a.element == nil {
		e, err := el.AddElement(a.name, a.typ, a.parentID)
		if err != nil {
			return err
		}
		a.element = e
		return nil
	}
	if err := el.RestoreElement(a.element.ID()); err != nil {
		return err
	}
	if parent := a.element.Parent(); parent != nil {
		el.SetExpanded(parent, a.parentExpanded)
	}
	return nil
}

func (a *ElementCreateAction) Undo() error {
	if a.element == nil {
		return fmt.Errorf("%w: element was never created", model.ErrNotFound)
	}
	if parent := a.element.Parent(); parent != nil {
		a.parentExpanded = parent.IsExpanded()
	}
	return a.model.Elements().RemoveElement(a.element.ID())
}

func (a *ElementCreateAction) Data() map[string]string {
	data := map[string]string{
		"name":   a.name,
		"type":   a.typ,
		"parent": itoa(a.parentID),
	}
	if a.element != nil {
		data["element"] = itoa(a.element.ID())
	}
	return data
}

// ElementDeleteAction soft-deletes an element and its subtree.
type ElementDeleteAction struct {
	model          *model.Model
	element        *model.Element
	parentExpanded bool
}

func NewElementDeleteAction(m *model.Model, e *model.Element) *ElementDeleteAction {
	return &ElementDeleteAction{model: m, element: e}
}

func loadElementDelete(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	a := &ElementDeleteAction{model: m, element: e}
	if parent := e.Parent(); parent != nil {
		a.parentExpanded = parent.IsExpanded()
	}
	return a, nil
}

func (a *ElementDeleteAction) Type() string { return ElementDeleteType }

func (a *ElementDeleteAction) Title() string {
	return fmt.Sprintf("Delete element %s", a.element.FullName())
}

func (a *ElementDeleteAction) Do() error {
	if parent := a.element.Parent(); parent != nil {
		a.parentExpanded = parent.IsExpanded()
	}
	return a.model.Elements().RemoveElement(a.element.ID())
}

func (a *ElementDeleteAction) Undo() error {
	el := a.model.Elements()
	if err := el.RestoreElement(a.element.ID()); err != nil {
		return err
	}
	if parent := a.element.Parent(); parent != nil {
		el.SetExpanded(parent, a.parentExpanded)
	}
	return nil
}

func (a *ElementDeleteAction) Data() map[string]string {
	return map[string]string{"element": itoa(a.element.ID())}
}

// ElementChangeNameAction renames an element.
type ElementChangeNameAction struct {
	model   *model.Model
	element *model.Element
	old     string
	new     string
}

func NewElementChangeNameAction(m *model.Model, e *model.Element, name string) *ElementChangeNameAction {
	return &ElementChangeNameAction{model: m, element: e, old: e.Name(), new: name}
}

func loadElementChangeName(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	old, err := stringField(data, "old")
	if err != nil {
		return nil, err
	}
	name, err := stringField(data, "new")
	if err != nil {
		return nil, err
	}
	return &ElementChangeNameAction{model: m, element: e, old: old, new: name}, nil
}

func (a *ElementChangeNameAction) Type() string { return ElementChangeNameType }

func (a *ElementChangeNameAction) Title() string {
	return fmt.Sprintf("Rename element %s to %s", a.old, a.new)
}

func (a *ElementChangeNameAction) Do() error {
	return a.model.Elements().ChangeName(a.element, a.new)
}

func (a *ElementChangeNameAction) Undo() error {
	return a.model.Elements().ChangeName(a.element, a.old)
}

func (a *ElementChangeNameAction) Data() map[string]string {
	return map[string]string{"element": itoa(a.element.ID()), "old": a.old, "new": a.new}
}

// ElementChangeTypeAction retypes an element.
type ElementChangeTypeAction struct {
	model   *model.Model
	element *model.Element
	old     string
	new     string
}

func NewElementChangeTypeAction(m *model.Model, e *model.Element, typ string) *ElementChangeTypeAction {
	return &ElementChangeTypeAction{model: m, element: e, old: e.Type(), new: typ}
}

func loadElementChangeType(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	return &ElementChangeTypeAction{model: m, element: e, old: data["old"], new: data["new"]}, nil
}

func (a *ElementChangeTypeAction) Type() string { return ElementChangeTypeType }

func (a *ElementChangeTypeAction) Title() string {
	return fmt.Sprintf("Change type of %s to %s", a.element.Name(), a.new)
}

func (a *ElementChangeTypeAction) Do() error {
	return a.model.Elements().ChangeType(a.element, a.new)
}

func (a *ElementChangeTypeAction) Undo() error {
	return a.model.Elements().ChangeType(a.element, a.old)
}

func (a *ElementChangeTypeAction) Data() map[string]string {
	return map[string]string{"element": itoa(a.element.ID()), "old": a.old, "new": a.new}
}

// ElementChangeParentAction moves an element below another parent. The previous
// position in the old parent's raw child list is kept so Undo is exact.
type ElementChangeParentAction struct {
	model     *model.Model
	element   *model.Element
	oldParent *model.Element
	newParent *model.Element
	oldIndex  int
}

func NewElementChangeParentAction(m *model.Model, e, parent *model.Element) *ElementChangeParentAction {
	return &ElementChangeParentAction{
		model:     m,
		element:   e,
		oldParent: e.Parent(),
		newParent: parent,
		oldIndex:  m.Elements().ChildIndex(e),
	}
}

func loadElementChangeParent(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	oldParent, err := elementField(m, data, "old")
	if err != nil {
		return nil, err
	}
	newParent, err := elementField(m, data, "new")
	if err != nil {
		return nil, err
	}
	index, err := intField(data, "index")
	if err != nil {
		return nil, err
	}
	return &ElementChangeParentAction{model: m, element: e, oldParent: oldParent, newParent: newParent, oldIndex: index}, nil
}

func (a *ElementChangeParentAction) Type() string { return ElementChangeParentType }

func (a *ElementChangeParentAction) Title() string {
	return fmt.Sprintf("Move %s to %s", a.element.Name(), a.newParent.FullName())
}

func (a *ElementChangeParentAction) Do() error {
	return a.model.Elements().ChangeParent(a.element, a.newParent, -1)
}

func (a *ElementChangeParentAction) Undo() error {
	return a.model.Elements().ChangeParent(a.element, a.oldParent, a.oldIndex)
}

func (a *ElementChangeParentAction) Data() map[string]string {
	return map[string]string{
		"element": itoa(a.element.ID()),
		"old":     itoa(a.oldParent.ID()),
		"new":     itoa(a.newParent.ID()),
		"index":   itoa(a.oldIndex),
	}
}

// ElementMoveUpAction swaps an element with its previous visible sibling. The
// sibling is resolved each time the action runs, never stored.
type ElementMoveUpAction struct {
	model   *model.Model
	element *model.Element
}

func NewElementMoveUpAction(m *model.Model, e *model.Element) *ElementMoveUpAction {
	return &ElementMoveUpAction{model: m, element: e}
}

func loadElementMoveUp(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	return NewElementMoveUpAction(m, e), nil
}

func (a *ElementMoveUpAction) Type() string { return ElementMoveUpType }

func (a *ElementMoveUpAction) Title() string { return fmt.Sprintf("Move up %s", a.element.Name()) }

func (a *ElementMoveUpAction) Do() error { return moveUp(a.model, a.element) }

func (a *ElementMoveUpAction) Undo() error { return moveDown(a.model, a.element) }

func (a *ElementMoveUpAction) Data() map[string]string {
	return map[string]string{"element": itoa(a.element.ID())}
}

// ElementMoveDownAction swaps an element with its next visible sibling.
type ElementMoveDownAction struct {
	model   *model.Model
	element *model.Element
}

func NewElementMoveDownAction(m *model.Model, e *model.Element) *ElementMoveDownAction {
	return &ElementMoveDownAction{model: m, element: e}
}

func loadElementMoveDown(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	return NewElementMoveDownAction(m, e), nil
}

func (a *ElementMoveDownAction) Type() string { return ElementMoveDownType }

func (a *ElementMoveDownAction) Title() string {
	return fmt.Sprintf("Move down %s", a.element.Name())
}

func (a *ElementMoveDownAction) Do() error { return moveDown(a.model, a.element) }

func (a *ElementMoveDownAction) Undo() error { return moveUp(a.model, a.element) }

func (a *ElementMoveDownAction) Data() map[string]string {
	return map[string]string{"element": itoa(a.element.ID())}
}

func moveUp(m *model.Model, e *model.Element) error {
	el := m.Elements()
	prev := el.PreviousSibling(e)
	if prev == nil || !el.Swap(prev, e) {
		return fmt.Errorf("%w: nothing above %s", ErrNoSibling, e.FullName())
	}
	return nil
}

func moveDown(m *model.Model, e *model.Element) error {
	el := m.Elements()
	next := el.NextSibling(e)
	if next == nil || !el.Swap(e, next) {
		return fmt.Errorf("%w: nothing below %s", ErrNoSibling, e.FullName())
	}
	return nil
}

// ElementPartitionAction reorders the visible children of an element. The
// permutation comes from a partitioning algorithm outside the model: new child i
// is old child sequence[i].
type ElementPartitionAction struct {
	model    *model.Model
	element  *model.Element
	sequence []int
}

func NewElementPartitionAction(m *model.Model, e *model.Element, sequence []int) *ElementPartitionAction {
	return &ElementPartitionAction{model: m, element: e, sequence: append([]int(nil), sequence...)}
}

func loadElementPartition(m *model.Model, data map[string]string) (Action, error) {
	e, err := elementField(m, data, "element")
	if err != nil {
		return nil, err
	}
	raw, err := stringField(data, "sequence")
	if err != nil {
		return nil, err
	}
	sequence, err := parseSequence(raw)
	if err != nil {
		return nil, err
	}
	return &ElementPartitionAction{model: m, element: e, sequence: sequence}, nil
}

func (a *ElementPartitionAction) Type() string { return ElementPartitionType }

func (a *ElementPartitionAction) Title() string {
	return fmt.Sprintf("Partition %s", a.element.Name())
}

func (a *ElementPartitionAction) Do() error {
	return a.model.Elements().ReorderChildren(a.element, a.sequence)
}

func (a *ElementPartitionAction) Undo() error {
	return a.model.Elements().ReorderChildren(a.element, model.InversePermutation(a.sequence))
}

func (a *ElementPartitionAction) Data() map[string]string {
	return map[string]string{"element": itoa(a.element.ID()), "sequence": formatSequence(a.sequence)}
}

func formatSequence(sequence []int) string {
	parts := make([]string, len(sequence))
	for i, n := range sequence {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func parseSequence(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	sequence := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: sequence %q", ErrInvalidRecord, raw)
		}
		sequence[i] = n
	}
	return sequence, nil
}
