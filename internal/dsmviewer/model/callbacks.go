package model

// ImportCallback is implemented by the model and called by a persistence reader.
// Elements may be imported in any order as long as parents precede children.
type ImportCallback interface {
	ImportMetaDataItem(group, name, value string) MetaDataItem
	ImportElement(id int, name, typ string, order int, expanded, included bool, parentID, deletedBy int) (*Element, error)
	ImportRelation(id, consumerID, providerID int, typ string, weight int, context string, deleted bool) (*Relation, error)
	ImportAction(index int, typ string, data map[string]string)
}

// ExportCallback exposes read-only accessors for a persistence writer.
type ExportCallback interface {
	MetaDataGroups() []string
	MetaDataGroupItems(group string) []MetaDataItem
	// ExportedRootElements returns the raw top-level elements, soft-deleted ones
	// included, so that a saved action log can still undo deletions after reload.
	ExportedRootElements() []*Element
	ElementCount() int
	ExportedRelations() []*Relation
	RelationCount() int
	Actions() []ActionRecord
}

// ActionRecord is one persisted entry of the action log. Data is a flat string map.
type ActionRecord struct {
	Index int
	Type  string
	Data  map[string]string
}

var (
	_ ImportCallback = (*Model)(nil)
	_ ExportCallback = (*Model)(nil)
)
