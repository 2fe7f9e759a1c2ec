package model

import (
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
)

// RelationModel indexes relations by id, consumer and provider. Removed relations
// are soft-deleted and stay indexed so they can be restored.
type RelationModel struct {
	elements   *ElementModel
	weights    *weightAggregator
	relations  map[int]*Relation
	byConsumer map[int][]*Relation
	byProvider map[int][]*Relation
	lastID     int
	log        *logger.Logger
}

// NewRelationModel creates a relation index bound to the element tree. The tree
// calls back into the index whenever a subtree is detached or attached.
func NewRelationModel(elements *ElementModel, strict bool, log *logger.Logger) *RelationModel {
	if log == nil {
		log = logger.Nop()
	}
	m := &RelationModel{
		elements:   elements,
		weights:    &weightAggregator{elements: elements, strict: strict, log: log},
		relations:  make(map[int]*Relation),
		byConsumer: make(map[int][]*Relation),
		byProvider: make(map[int][]*Relation),
		log:        log,
	}
	elements.agg = m
	return m
}

// Clear drops every relation. Element weights are reset by the caller clearing the tree.
func (m *RelationModel) Clear() {
	m.relations = make(map[int]*Relation)
	m.byConsumer = make(map[int][]*Relation)
	m.byProvider = make(map[int][]*Relation)
	m.lastID = 0
}

// isActive reports whether the relation currently contributes weights.
func (m *RelationModel) isActive(r *Relation) bool {
	return !r.deleted &&
		m.elements.FindElementByID(r.consumerID) != nil &&
		m.elements.FindElementByID(r.providerID) != nil
}

func (m *RelationModel) applyDelta(r *Relation, delta int) {
	consumer := m.elements.FindElementByID(r.consumerID)
	provider := m.elements.FindElementByID(r.providerID)
	m.weights.apply(consumer, provider, delta)
}

func (m *RelationModel) register(r *Relation) {
	m.relations[r.id] = r
	m.byConsumer[r.consumerID] = append(m.byConsumer[r.consumerID], r)
	m.byProvider[r.providerID] = append(m.byProvider[r.providerID], r)
}

// AddRelation records a dependency. When a non-deleted relation with the same
// consumer, provider and type exists its weight grows instead, and created is false.
func (m *RelationModel) AddRelation(consumerID, providerID int, typ string, weight int, context string) (r *Relation, created bool, err error) {
	m.log.Debug("Add relation", "consumerId", consumerID, "providerId", providerID, "type", typ, "weight", weight)
	if weight < 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidWeight, weight)
	}
	if m.elements.FindElementByID(consumerID) == nil {
		return nil, false, fmt.Errorf("%w: consumer id=%d", ErrNotFound, consumerID)
	}
	if m.elements.FindElementByID(providerID) == nil {
		return nil, false, fmt.Errorf("%w: provider id=%d", ErrNotFound, providerID)
	}

	if existing := m.FindRelation(consumerID, providerID, typ); existing != nil {
		existing.weight += weight
		if m.isActive(existing) {
			m.applyDelta(existing, weight)
		}
		return existing, false, nil
	}

	m.lastID++
	r = &Relation{id: m.lastID, consumerID: consumerID, providerID: providerID, typ: typ, weight: weight, context: context}
	m.register(r)
	m.applyDelta(r, weight)
	return r, true, nil
}

// ImportRelation adds a relation read from persistent storage. Both endpoints must
// have been imported already, live or deleted.
func (m *RelationModel) ImportRelation(id, consumerID, providerID int, typ string, weight int, context string, deleted bool) (*Relation, error) {
	m.log.Debug("Import relation", "id", id, "consumerId", consumerID, "providerId", providerID, "type", typ, "weight", weight)
	if _, ok := m.relations[id]; ok || id <= 0 {
		return nil, fmt.Errorf("%w: relation id=%d", ErrDuplicateID, id)
	}
	if weight < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeight, weight)
	}
	if m.elements.get(consumerID) == nil || consumerID == rootID {
		return nil, fmt.Errorf("%w: consumer id=%d", ErrNotFound, consumerID)
	}
	if m.elements.get(providerID) == nil || providerID == rootID {
		return nil, fmt.Errorf("%w: provider id=%d", ErrNotFound, providerID)
	}
	if id > m.lastID {
		m.lastID = id
	}

	r := &Relation{id: id, consumerID: consumerID, providerID: providerID, typ: typ, weight: weight, context: context, deleted: deleted}
	m.register(r)
	if m.isActive(r) {
		m.applyDelta(r, weight)
	}
	return r, nil
}

// RemoveRelation soft-deletes a relation and withdraws its weight.
func (m *RelationModel) RemoveRelation(id int) error {
	m.log.Debug("Remove relation", "id", id)
	r, ok := m.relations[id]
	if !ok || r.deleted {
		return fmt.Errorf("%w: relation id=%d", ErrNotFound, id)
	}
	if m.isActive(r) {
		m.applyDelta(r, -r.weight)
	}
	r.deleted = true
	return nil
}

// UnremoveRelation restores a soft-deleted relation and its weight.
func (m *RelationModel) UnremoveRelation(id int) error {
	m.log.Debug("Restore relation", "id", id)
	r, ok := m.relations[id]
	if !ok || !r.deleted {
		return fmt.Errorf("%w: relation id=%d", ErrNotDeleted, id)
	}
	r.deleted = false
	if m.isActive(r) {
		m.applyDelta(r, r.weight)
	}
	return nil
}

// ChangeRelationType retags a relation. Weights are not kept per type, so the
// aggregated maps are unaffected.
func (m *RelationModel) ChangeRelationType(r *Relation, typ string) {
	r.typ = typ
}

// ChangeRelationWeight sets a new weight and applies only the difference.
func (m *RelationModel) ChangeRelationWeight(r *Relation, weight int) error {
	if weight < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWeight, weight)
	}
	if m.isActive(r) {
		m.applyDelta(r, weight-r.weight)
	}
	r.weight = weight
	return nil
}

// FindRelationByID returns a non-deleted relation, or nil.
func (m *RelationModel) FindRelationByID(id int) *Relation {
	if r, ok := m.relations[id]; ok && !r.deleted {
		return r
	}
	return nil
}

// FindDeletedRelationByID returns a soft-deleted relation, or nil.
func (m *RelationModel) FindDeletedRelationByID(id int) *Relation {
	if r, ok := m.relations[id]; ok && r.deleted {
		return r
	}
	return nil
}

// FindRelation returns the non-deleted relation for the exact triple, or nil.
func (m *RelationModel) FindRelation(consumerID, providerID int, typ string) *Relation {
	for _, r := range m.byConsumer[consumerID] {
		if !r.deleted && r.providerID == providerID && r.typ == typ {
			return r
		}
	}
	return nil
}

// RelationsOfConsumer returns the active relations whose consumer is exactly the element.
func (m *RelationModel) RelationsOfConsumer(consumerID int) []*Relation {
	return m.activeOnly(m.byConsumer[consumerID])
}

// RelationsOfProvider returns the active relations whose provider is exactly the element.
func (m *RelationModel) RelationsOfProvider(providerID int) []*Relation {
	return m.activeOnly(m.byProvider[providerID])
}

func (m *RelationModel) activeOnly(list []*Relation) []*Relation {
	var result []*Relation
	for _, r := range list {
		if m.isActive(r) {
			result = append(result, r)
		}
	}
	return result
}

// Relations returns every relation including soft-deleted ones, ordered by id.
func (m *RelationModel) Relations() []*Relation {
	list := make([]*Relation, 0, len(m.relations))
	for _, r := range m.relations {
		list = append(list, r)
	}
	sortRelations(list)
	return list
}

// RelationCount returns the number of active relations.
func (m *RelationModel) RelationCount() int {
	count := 0
	for _, r := range m.relations {
		if m.isActive(r) {
			count++
		}
	}
	return count
}

// resolve maps an element id to its most specific live ancestor-or-self.
func (m *RelationModel) resolve(id int) *Element {
	for e := m.elements.get(id); e != nil && !e.IsRoot(); e = e.Parent() {
		if !e.deleted {
			return e
		}
	}
	return nil
}

// FindResolvedRelations returns the non-deleted relations whose ends, after
// mapping each to its most specific live ancestor, fall within the consumer and
// provider subtrees. It answers "relations between X and Y" even when the original
// endpoints were deleted since the relation was recorded.
func (m *RelationModel) FindResolvedRelations(consumer, provider *Element) []*Relation {
	var result []*Relation
	for _, r := range m.relations {
		if r.deleted {
			continue
		}
		rc, rp := m.resolve(r.consumerID), m.resolve(r.providerID)
		if rc == nil || rp == nil {
			continue
		}
		if inSubtree(rc, consumer) && inSubtree(rp, provider) {
			result = append(result, r)
		}
	}
	sortRelations(result)
	return result
}

// FindIngoingRelations returns active relations from outside e's subtree into it.
func (m *RelationModel) FindIngoingRelations(e *Element) []*Relation {
	return m.filterSubtree(e, func(consumerIn, providerIn bool) bool { return !consumerIn && providerIn })
}

// FindOutgoingRelations returns active relations from e's subtree to outside it.
func (m *RelationModel) FindOutgoingRelations(e *Element) []*Relation {
	return m.filterSubtree(e, func(consumerIn, providerIn bool) bool { return consumerIn && !providerIn })
}

// FindInternalRelations returns active relations with both ends inside e's subtree.
func (m *RelationModel) FindInternalRelations(e *Element) []*Relation {
	return m.filterSubtree(e, func(consumerIn, providerIn bool) bool { return consumerIn && providerIn })
}

func (m *RelationModel) filterSubtree(e *Element, keep func(consumerIn, providerIn bool) bool) []*Relation {
	var result []*Relation
	for _, r := range m.touching(e) {
		if !m.isActive(r) {
			continue
		}
		consumerIn := inSubtree(m.elements.get(r.consumerID), e)
		providerIn := inSubtree(m.elements.get(r.providerID), e)
		if keep(consumerIn, providerIn) {
			result = append(result, r)
		}
	}
	sortRelations(result)
	return result
}

// touching collects every relation with an end in the live part of e's subtree.
func (m *RelationModel) touching(e *Element) []*Relation {
	seen := make(map[int]bool)
	var result []*Relation
	var walk func(x *Element)
	walk = func(x *Element) {
		for _, list := range [][]*Relation{m.byConsumer[x.id], m.byProvider[x.id]} {
			for _, r := range list {
				if !seen[r.id] {
					seen[r.id] = true
					result = append(result, r)
				}
			}
		}
		for _, c := range x.AllChildren() {
			if !c.deleted {
				walk(c)
			}
		}
	}
	walk(e)
	return result
}

func (m *RelationModel) detach(e *Element) {
	for _, r := range m.touching(e) {
		if m.isActive(r) {
			m.applyDelta(r, -r.weight)
		}
	}
}

func (m *RelationModel) attach(e *Element) {
	for _, r := range m.touching(e) {
		if m.isActive(r) {
			m.applyDelta(r, r.weight)
		}
	}
}

func inSubtree(x, ancestor *Element) bool {
	return x != nil && (x.id == ancestor.id || x.IsRecursiveChildOf(ancestor))
}

func sortRelations(list []*Relation) {
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
}
