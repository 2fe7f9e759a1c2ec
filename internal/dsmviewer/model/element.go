package model

import "strings"

const (
	rootID   = 0
	noParent = -1
)

// Element is a node in the DSM hierarchy.
// Elements live in the arena of the ElementModel that created them: the parent is
// kept as a plain id and the children as an owned, ordered id list.
type Element struct {
	id       int
	name     string
	typeID   int
	order    int
	parentID int
	childIDs []int

	deleted   bool
	deletedBy int // id of the removal root that deleted this element
	expanded  bool
	included  bool
	match     bool

	directWeights map[int]int
	weights       map[int]int

	tree *ElementModel
}

func newElement(tree *ElementModel, id int, name, typ string, order int, expanded bool) *Element {
	return &Element{
		id:            id,
		name:          name,
		typeID:        elementTypes.intern(typ),
		order:         order,
		parentID:      noParent,
		expanded:      expanded,
		included:      true,
		directWeights: make(map[int]int),
		weights:       make(map[int]int),
		tree:          tree,
	}
}

// ID returns the immutable, globally unique element id.
func (e *Element) ID() int { return e.id }

func (e *Element) Name() string { return e.name }

func (e *Element) Type() string { return elementTypes.name(e.typeID) }

// Order is the element's position in a pre-order traversal of the live tree.
func (e *Element) Order() int { return e.order }

func (e *Element) IsDeleted() bool { return e.deleted }

// DeletedBy returns the id of the element whose removal deleted e, or 0 when e is live.
func (e *Element) DeletedBy() int { return e.deletedBy }

func (e *Element) IsExpanded() bool { return e.expanded }

func (e *Element) IsIncludedInTree() bool { return e.included }

// IsMatch reports whether the last marking search matched this element.
func (e *Element) IsMatch() bool { return e.match }

// IsRoot reports whether e is the synthetic root of the hierarchy.
func (e *Element) IsRoot() bool { return e.parentID == noParent }

// Parent returns the parent element. Top-level elements have the synthetic root as
// parent; the root itself has none.
func (e *Element) Parent() *Element {
	if e.parentID == noParent {
		return nil
	}
	return e.tree.get(e.parentID)
}

// FullName joins the names from the top of the hierarchy down to e with dots,
// skipping ancestors with an empty name.
func (e *Element) FullName() string {
	parts := []string{e.name}
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.name != "" {
			parts = append(parts, p.name)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Children returns the visible children: not deleted and included in the tree.
func (e *Element) Children() []*Element {
	children := make([]*Element, 0, len(e.childIDs))
	for _, id := range e.childIDs {
		c := e.tree.get(id)
		if c != nil && !c.deleted && c.included {
			children = append(children, c)
		}
	}
	return children
}

// AllChildren returns the raw child list, including deleted and hidden children.
func (e *Element) AllChildren() []*Element {
	children := make([]*Element, 0, len(e.childIDs))
	for _, id := range e.childIDs {
		if c := e.tree.get(id); c != nil {
			children = append(children, c)
		}
	}
	return children
}

func (e *Element) ChildCount() int { return len(e.Children()) }

func (e *Element) HasChildren() bool { return e.ChildCount() > 0 }

// IsRecursiveChildOf reports whether ancestor is a strict ancestor of e.
func (e *Element) IsRecursiveChildOf(ancestor *Element) bool {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.id == ancestor.id {
			return true
		}
	}
	return false
}

// DirectWeight returns the summed weight of relations from exactly e to exactly the other element.
func (e *Element) DirectWeight(otherID int) int { return e.directWeights[otherID] }

// AggregatedWeight returns the summed weight of relations from e's subtree to the
// subtree of the other element. The self entry is never stored.
func (e *Element) AggregatedWeight(otherID int) int { return e.weights[otherID] }

// HasAggregatedWeight reports whether an aggregated entry exists for the other element.
func (e *Element) HasAggregatedWeight(otherID int) bool {
	_, ok := e.weights[otherID]
	return ok
}

// DirectWeights returns a copy of the direct weight map keyed by provider id.
func (e *Element) DirectWeights() map[int]int { return copyWeights(e.directWeights) }

// AggregatedWeights returns a copy of the aggregated weight map keyed by provider id.
func (e *Element) AggregatedWeights() map[int]int { return copyWeights(e.weights) }

func copyWeights(src map[int]int) map[int]int {
	dst := make(map[int]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (e *Element) childIndex(id int) int {
	for i, c := range e.childIDs {
		if c == id {
			return i
		}
	}
	return -1
}

func (e *Element) removeChildID(id int) int {
	i := e.childIndex(id)
	if i >= 0 {
		e.childIDs = append(e.childIDs[:i], e.childIDs[i+1:]...)
	}
	return i
}

func (e *Element) insertChildID(id, index int) {
	if index < 0 || index >= len(e.childIDs) {
		e.childIDs = append(e.childIDs, id)
		return
	}
	e.childIDs = append(e.childIDs, 0)
	copy(e.childIDs[index+1:], e.childIDs[index:])
	e.childIDs[index] = id
}

// liveChildNamed finds a non-deleted child with the given name.
func (e *Element) liveChildNamed(name string) *Element {
	for _, id := range e.childIDs {
		c := e.tree.get(id)
		if c != nil && !c.deleted && c.name == name {
			return c
		}
	}
	return nil
}
