// Package model holds the in-memory DSM: the element hierarchy, the relation
// index and the weights aggregated over the hierarchy.
//
// The model is not safe for concurrent use. All edits are expected to come from a
// single session, either as bulk ingestion before editing starts or through the
// action engine afterwards.
package model

import (
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
)

// Model combines the element tree, relation index, metadata and persisted action log.
type Model struct {
	elements  *ElementModel
	relations *RelationModel
	metaData  *metaDataModel
	actions   []ActionRecord
	log       *logger.Logger
}

type options struct {
	log    *logger.Logger
	strict bool
}

// Option configures a Model.
type Option func(*options)

// WithLogger routes data-model messages to the given logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStrictWeights makes a weight underflow panic instead of being clamped and logged.
func WithStrictWeights(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// New creates an empty model.
func New(opts ...Option) *Model {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	elements := NewElementModel(o.log)
	return &Model{
		elements:  elements,
		relations: NewRelationModel(elements, o.strict, o.log),
		metaData:  newMetaDataModel(),
		log:       o.log,
	}
}

func (m *Model) Elements() *ElementModel { return m.elements }

func (m *Model) Relations() *RelationModel { return m.relations }

// Clear empties the model completely.
func (m *Model) Clear() {
	m.elements.Clear()
	m.relations.Clear()
	m.metaData = newMetaDataModel()
	m.actions = nil
}

// IngestRelation resolves both ends by full name and records the relation.
// It is the ingestion counterpart of IngestElement and never records history.
func (m *Model) IngestRelation(consumerName, providerName, typ string, weight int, context string) (*Relation, error) {
	consumer := m.elements.findByPath(consumerName)
	if consumer == nil {
		return nil, fmt.Errorf("%w: consumer %q", ErrNotFound, consumerName)
	}
	provider := m.elements.findByPath(providerName)
	if provider == nil {
		return nil, fmt.Errorf("%w: provider %q", ErrNotFound, providerName)
	}
	r, _, err := m.relations.AddRelation(consumer.id, provider.id, typ, weight, context)
	return r, err
}

// AddMetaData records an informational item such as analyzer settings.
func (m *Model) AddMetaData(group, name, value string) MetaDataItem {
	return m.metaData.add(group, name, value)
}

// ImportMetaDataItem implements ImportCallback.
func (m *Model) ImportMetaDataItem(group, name, value string) MetaDataItem {
	return m.metaData.add(group, name, value)
}

// ImportElement implements ImportCallback.
func (m *Model) ImportElement(id int, name, typ string, order int, expanded, included bool, parentID, deletedBy int) (*Element, error) {
	return m.elements.ImportElement(id, name, typ, order, expanded, included, parentID, deletedBy)
}

// ImportRelation implements ImportCallback.
func (m *Model) ImportRelation(id, consumerID, providerID int, typ string, weight int, context string, deleted bool) (*Relation, error) {
	return m.relations.ImportRelation(id, consumerID, providerID, typ, weight, context, deleted)
}

// ImportAction implements ImportCallback.
func (m *Model) ImportAction(index int, typ string, data map[string]string) {
	m.AddAction(index, typ, data)
}

// AddAction appends a record to the persisted action log.
func (m *Model) AddAction(index int, typ string, data map[string]string) {
	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	m.actions = append(m.actions, ActionRecord{Index: index, Type: typ, Data: copied})
}

// ClearActions empties the persisted action log before a save.
func (m *Model) ClearActions() {
	m.actions = nil
}

// Actions implements ExportCallback; records are returned in index order.
func (m *Model) Actions() []ActionRecord {
	list := append([]ActionRecord(nil), m.actions...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Index < list[j].Index })
	return list
}

func (m *Model) MetaDataGroups() []string { return m.metaData.groupNames() }

func (m *Model) MetaDataGroupItems(group string) []MetaDataItem {
	return m.metaData.groupItems(group)
}

func (m *Model) ExportedRootElements() []*Element { return m.elements.root.AllChildren() }

func (m *Model) ElementCount() int { return m.elements.ElementCount() }

// ExportedRelations returns every relation, soft-deleted ones included.
func (m *Model) ExportedRelations() []*Relation { return m.relations.Relations() }

func (m *Model) RelationCount() int { return m.relations.RelationCount() }
