package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
)

// EventKind identifies a structural change in the element tree.
type EventKind string

const (
	EventUnregistered EventKind = "UNREGISTERED"
	EventReregistered EventKind = "REREGISTERED"
	EventMoved        EventKind = "MOVED"
)

// ElementEvent is queued for every element affected by a structural change and
// drained synchronously by presentation layers to refresh their caches.
type ElementEvent struct {
	Kind      EventKind
	ElementID int
}

// aggregator is called by the tree around every structural change that alters the
// ancestor chain or liveness of a subtree. detach runs before the change with the
// old ancestor chain in place, attach runs after it.
type aggregator interface {
	detach(e *Element)
	attach(e *Element)
}

// ElementModel owns the element hierarchy: an arena of elements addressed by id,
// split into a live index and a soft-deleted index.
type ElementModel struct {
	root     *Element
	elements map[int]*Element
	deleted  map[int]*Element
	lastID   int

	agg    aggregator
	events []ElementEvent
	log    *logger.Logger
}

// NewElementModel creates an empty element tree with only the synthetic root.
func NewElementModel(log *logger.Logger) *ElementModel {
	if log == nil {
		log = logger.Nop()
	}
	m := &ElementModel{
		elements: make(map[int]*Element),
		deleted:  make(map[int]*Element),
		log:      log,
	}
	m.root = newElement(m, rootID, "", "", 0, true)
	return m
}

// Clear removes every element and resets the id allocator.
func (m *ElementModel) Clear() {
	m.elements = make(map[int]*Element)
	m.deleted = make(map[int]*Element)
	m.root.childIDs = nil
	m.lastID = 0
	m.events = nil
}

func (m *ElementModel) get(id int) *Element {
	if id == rootID {
		return m.root
	}
	if e, ok := m.elements[id]; ok {
		return e
	}
	return m.deleted[id]
}

// Root returns the synthetic root. It has an empty name and is never deleted.
func (m *ElementModel) Root() *Element { return m.root }

// RootElements returns the visible top-level elements.
func (m *ElementModel) RootElements() []*Element { return m.root.Children() }

// ElementCount returns the number of live elements.
func (m *ElementModel) ElementCount() int { return len(m.elements) }

// Elements returns all live elements ordered by id.
func (m *ElementModel) Elements() []*Element {
	return sortedByID(m.elements)
}

// DeletedElements returns all soft-deleted elements ordered by id.
func (m *ElementModel) DeletedElements() []*Element {
	return sortedByID(m.deleted)
}

func sortedByID(index map[int]*Element) []*Element {
	list := make([]*Element, 0, len(index))
	for _, e := range index {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

// DrainEvents returns the queued structural events and clears the queue.
func (m *ElementModel) DrainEvents() []ElementEvent {
	events := m.events
	m.events = nil
	return events
}

func (m *ElementModel) emit(kind EventKind, id int) {
	m.events = append(m.events, ElementEvent{Kind: kind, ElementID: id})
}

// liveParent resolves a parent id for a new element; 0 addresses the root.
func (m *ElementModel) liveParent(parentID int) (*Element, error) {
	if parentID == rootID {
		return m.root, nil
	}
	if p, ok := m.elements[parentID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: id=%d", ErrParentNotFound, parentID)
}

// AddElement creates a new element under the given parent (0 for top level).
// Interactive creation never deduplicates by name.
func (m *ElementModel) AddElement(name, typ string, parentID int) (*Element, error) {
	m.log.Debug("Add element", "name", name, "type", typ, "parentId", parentID)
	if name == "" {
		return nil, fmt.Errorf("%w: empty element name", ErrInvalidName)
	}
	parent, err := m.liveParent(parentID)
	if err != nil {
		return nil, err
	}
	m.lastID++
	e := newElement(m, m.lastID, name, typ, 0, false)
	m.attachChild(parent, e, -1)
	m.elements[e.id] = e
	m.AssignElementOrder()
	return e, nil
}

// ImportElement adds an element read from persistent storage. Ids are taken as
// given and advance the allocator. The parent must have been imported before.
// deletedBy is 0 for a live element, otherwise the id of the element whose removal
// deleted it; an element below a deleted parent is always imported as deleted.
// included is false for an element hidden from the tree.
func (m *ElementModel) ImportElement(id int, name, typ string, order int, expanded, included bool, parentID, deletedBy int) (*Element, error) {
	m.log.Debug("Import element", "id", id, "name", name, "type", typ, "order", order, "expanded", expanded, "included", included, "parentId", parentID, "deletedBy", deletedBy)
	if id <= rootID {
		return nil, fmt.Errorf("%w: element id=%d", ErrInvalidName, id)
	}
	if m.get(id) != nil {
		return nil, fmt.Errorf("%w: element id=%d", ErrDuplicateID, id)
	}
	parent := m.get(parentID)
	if parent == nil {
		m.log.Warn("Parent not found", "id", id, "parentId", parentID)
		return nil, fmt.Errorf("%w: element id=%d parent id=%d", ErrParentNotFound, id, parentID)
	}
	if id > m.lastID {
		m.lastID = id
	}

	e := newElement(m, id, name, typ, order, expanded)
	e.included = included
	m.attachChild(parent, e, -1)
	switch {
	case deletedBy != 0:
		e.deleted = true
		e.deletedBy = deletedBy
		m.deleted[id] = e
	case parent.deleted:
		e.deleted = true
		e.deletedBy = parent.deletedBy
		m.deleted[id] = e
	default:
		m.elements[id] = e
	}
	return e, nil
}

// IngestElement resolves a dotted full name to an element, creating it and any
// missing intermediate elements. Existing elements are reused, which makes bulk
// ingestion idempotent. Intermediate elements get an empty type until defined.
func (m *ElementModel) IngestElement(fullName, typ string) (*Element, error) {
	parts := strings.Split(fullName, ".")
	parent := m.root
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, fullName)
		}
		last := i == len(parts)-1
		child := parent.liveChildNamed(part)
		if child == nil {
			childType := ""
			if last {
				childType = typ
			}
			m.lastID++
			child = newElement(m, m.lastID, part, childType, 0, false)
			m.attachChild(parent, child, -1)
			m.elements[child.id] = child
		} else if last && child.typeID == 0 && typ != "" {
			child.typeID = elementTypes.intern(typ)
		}
		parent = child
	}
	return parent, nil
}

func (m *ElementModel) attachChild(parent, child *Element, index int) {
	parent.insertChildID(child.id, index)
	child.parentID = parent.id
}

// RemoveElement soft-deletes the element and every live descendant. Unknown or
// already deleted ids are reported and leave the tree untouched.
func (m *ElementModel) RemoveElement(id int) error {
	m.log.Debug("Remove element", "id", id)
	e, ok := m.elements[id]
	if !ok {
		m.log.Warn("Remove of unknown element ignored", "id", id)
		return fmt.Errorf("%w: element id=%d", ErrNotFound, id)
	}

	if m.agg != nil {
		m.agg.detach(e)
	}
	m.unregister(e, e.id)

	if parent := e.Parent(); parent != nil && !parent.HasChildren() {
		parent.expanded = false
	}
	m.AssignElementOrder()
	return nil
}

func (m *ElementModel) unregister(e *Element, removalRoot int) {
	e.deleted = true
	e.deletedBy = removalRoot
	delete(m.elements, e.id)
	m.deleted[e.id] = e
	m.emit(EventUnregistered, e.id)

	for _, c := range e.AllChildren() {
		if !c.deleted {
			m.unregister(c, removalRoot)
		}
	}
}

// RestoreElement reverses a RemoveElement. Only descendants removed together with
// the element come back; the element reappears at its remembered position.
func (m *ElementModel) RestoreElement(id int) error {
	m.log.Debug("Restore element", "id", id)
	e, ok := m.deleted[id]
	if !ok {
		return fmt.Errorf("%w: element id=%d", ErrNotDeleted, id)
	}
	parent := e.Parent()
	if parent == nil || parent.deleted {
		return fmt.Errorf("%w: element id=%d parent id=%d", ErrOrphanedParent, id, e.parentID)
	}

	m.reregister(e, e.deletedBy)
	if m.agg != nil {
		m.agg.attach(e)
	}
	m.AssignElementOrder()
	return nil
}

func (m *ElementModel) reregister(e *Element, removalRoot int) {
	e.deleted = false
	e.deletedBy = 0
	delete(m.deleted, e.id)
	m.elements[e.id] = e
	m.emit(EventReregistered, e.id)

	for _, c := range e.AllChildren() {
		if c.deleted && c.deletedBy == removalRoot {
			m.reregister(c, removalRoot)
		}
	}
}

// ChildIndex returns the position of e in its parent's raw child list, or -1.
func (m *ElementModel) ChildIndex(e *Element) int {
	parent := e.Parent()
	if parent == nil {
		return -1
	}
	return parent.childIndex(e.id)
}

// ChangeParent moves e below parent at the given raw child index (-1 appends).
// Moving an element below itself or one of its descendants is rejected with
// ErrCycleDetected and leaves the tree unchanged.
func (m *ElementModel) ChangeParent(e, parent *Element, index int) error {
	if e == nil || parent == nil {
		return fmt.Errorf("%w: element or parent missing", ErrNotFound)
	}
	if e.IsRoot() || e.deleted {
		return fmt.Errorf("%w: element id=%d", ErrNotFound, e.id)
	}
	if parent.deleted {
		return fmt.Errorf("%w: id=%d", ErrParentNotFound, parent.id)
	}
	if parent.id == e.id || parent.IsRecursiveChildOf(e) {
		return fmt.Errorf("%w: element id=%d below id=%d", ErrCycleDetected, e.id, parent.id)
	}
	m.log.Debug("Change element parent", "name", e.name, "from", e.Parent().FullName(), "to", parent.FullName())

	if m.agg != nil {
		m.agg.detach(e)
	}
	e.Parent().removeChildID(e.id)
	m.attachChild(parent, e, index)
	m.emit(EventMoved, e.id)
	if m.agg != nil {
		m.agg.attach(e)
	}
	m.AssignElementOrder()
	return nil
}

// Swap exchanges the positions of two elements sharing a parent.
// It returns false when the elements are not siblings.
func (m *ElementModel) Swap(a, b *Element) bool {
	if a == nil || b == nil || a.id == b.id || a.parentID != b.parentID || a.IsRoot() {
		return false
	}
	parent := a.Parent()
	i, j := parent.childIndex(a.id), parent.childIndex(b.id)
	if i < 0 || j < 0 {
		return false
	}
	parent.childIDs[i], parent.childIDs[j] = parent.childIDs[j], parent.childIDs[i]
	m.AssignElementOrder()
	return true
}

// ReorderChildren rearranges the visible children of parent so that new child i is
// old child permutation[i]. Hidden and deleted children keep their raw positions.
func (m *ElementModel) ReorderChildren(parent *Element, permutation []int) error {
	if parent == nil {
		return fmt.Errorf("%w: parent missing", ErrNotFound)
	}
	visible := parent.Children()
	if err := validatePermutation(permutation, len(visible)); err != nil {
		return err
	}

	slots := make([]int, len(visible))
	for i, c := range visible {
		slots[i] = parent.childIndex(c.id)
	}
	for i, slot := range slots {
		parent.childIDs[slot] = visible[permutation[i]].id
	}
	m.AssignElementOrder()
	return nil
}

func validatePermutation(permutation []int, n int) error {
	if len(permutation) != n {
		return fmt.Errorf("%w: got %d indices for %d children", ErrInvalidPermutation, len(permutation), n)
	}
	seen := make([]bool, n)
	for _, idx := range permutation {
		if idx < 0 || idx >= n || seen[idx] {
			return fmt.Errorf("%w: index %d", ErrInvalidPermutation, idx)
		}
		seen[idx] = true
	}
	return nil
}

// InversePermutation returns the permutation that undoes p.
func InversePermutation(p []int) []int {
	inv := make([]int, len(p))
	for i, idx := range p {
		if idx >= 0 && idx < len(p) {
			inv[idx] = i
		}
	}
	return inv
}

// NextSibling returns the visible sibling after e, or nil.
func (m *ElementModel) NextSibling(e *Element) *Element {
	siblings, i := m.siblings(e)
	if i < 0 || i+1 >= len(siblings) {
		return nil
	}
	return siblings[i+1]
}

// PreviousSibling returns the visible sibling before e, or nil.
func (m *ElementModel) PreviousSibling(e *Element) *Element {
	siblings, i := m.siblings(e)
	if i <= 0 {
		return nil
	}
	return siblings[i-1]
}

func (m *ElementModel) siblings(e *Element) ([]*Element, int) {
	if e == nil || e.Parent() == nil {
		return nil, -1
	}
	siblings := e.Parent().Children()
	for i, s := range siblings {
		if s.id == e.id {
			return siblings, i
		}
	}
	return siblings, -1
}

// AssignElementOrder renumbers every visible element in depth-first pre-order,
// starting at 1. Hidden and deleted elements, and everything below them, get order 0.
func (m *ElementModel) AssignElementOrder() {
	for _, e := range m.elements {
		e.order = 0
	}
	for _, e := range m.deleted {
		e.order = 0
	}
	order := 1
	for _, e := range m.root.Children() {
		assignOrder(e, &order)
	}
}

func assignOrder(e *Element, order *int) {
	e.order = *order
	*order++
	for _, c := range e.Children() {
		assignOrder(c, order)
	}
}

// FindElementByID returns the live element with the given id, or nil.
func (m *ElementModel) FindElementByID(id int) *Element {
	return m.elements[id]
}

// FindDeletedElementByID returns the soft-deleted element with the given id, or nil.
func (m *ElementModel) FindDeletedElementByID(id int) *Element {
	return m.deleted[id]
}

// FindElementByFullName scans the live elements for an exact full name match.
// When several elements share the name the lowest id wins.
func (m *ElementModel) FindElementByFullName(fullName string) *Element {
	var found *Element
	for _, e := range m.elements {
		if e.FullName() == fullName && (found == nil || e.id < found.id) {
			found = e
		}
	}
	return found
}

// SearchOptions narrows an element search.
type SearchOptions struct {
	CaseSensitive bool
	Type          string // empty matches every type
	Mark          bool   // update the IsMatch flag of every live element
}

// SearchElements returns the live elements whose full name contains text, in tree order.
func (m *ElementModel) SearchElements(text string, opts SearchOptions) []*Element {
	needle := text
	if !opts.CaseSensitive {
		needle = strings.ToLower(text)
	}

	var matches []*Element
	for _, e := range m.elements {
		name := e.FullName()
		if !opts.CaseSensitive {
			name = strings.ToLower(name)
		}
		ok := text != "" && strings.Contains(name, needle) && (opts.Type == "" || e.Type() == opts.Type)
		if opts.Mark {
			e.match = ok
		}
		if ok {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].order != matches[j].order {
			return matches[i].order < matches[j].order
		}
		return matches[i].id < matches[j].id
	})
	return matches
}

// ChangeName renames an element. Names are only unique among siblings by convention.
// The synthetic root keeps its empty name.
func (m *ElementModel) ChangeName(e *Element, name string) error {
	if e == nil || e.IsRoot() {
		return fmt.Errorf("%w: root element cannot be renamed", ErrNotFound)
	}
	if name == "" {
		return fmt.Errorf("%w: empty element name", ErrInvalidName)
	}
	e.name = name
	return nil
}

func (m *ElementModel) ChangeType(e *Element, typ string) error {
	if e == nil || e.IsRoot() {
		return fmt.Errorf("%w: root element has no type", ErrNotFound)
	}
	e.typeID = elementTypes.intern(typ)
	return nil
}

func (m *ElementModel) SetExpanded(e *Element, expanded bool) {
	e.expanded = expanded
}

// SetIncludedInTree hides or shows an element in tree traversal without deleting it.
// A hidden element drops out of Children, sibling navigation and ordering, but keeps
// its relations and weights.
func (m *ElementModel) SetIncludedInTree(e *Element, included bool) error {
	if e == nil || e.IsRoot() {
		return fmt.Errorf("%w: root element is always included", ErrNotFound)
	}
	e.included = included
	m.AssignElementOrder()
	return nil
}

// ElementTypes returns the distinct types of the live elements in the order the
// type names were first seen. The empty type is left out.
func (m *ElementModel) ElementTypes() []string {
	used := make(map[int]bool)
	for _, e := range m.elements {
		if e.typeID != 0 {
			used[e.typeID] = true
		}
	}
	ids := make([]int, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = elementTypes.name(id)
	}
	return names
}

// findByPath walks the dotted name segment by segment through live children.
// It is the fast path for ingestion; names containing dots fall back to a scan.
func (m *ElementModel) findByPath(fullName string) *Element {
	e := m.root
	for _, part := range strings.Split(fullName, ".") {
		if e = e.liveChildNamed(part); e == nil {
			return m.FindElementByFullName(fullName)
		}
	}
	return e
}
