package actions

import (
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// Factory rebuilds an action from its persisted record.
type Factory func(m *model.Model, data map[string]string) (Action, error)

// Catalog maps type tags to factories. It is only used when a model is loaded or
// saved, never while editing.
type Catalog struct {
	factories map[string]Factory
	log       *logger.Logger
}

// NewCatalog creates a catalog with every built-in action registered.
func NewCatalog(log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Nop()
	}
	c := &Catalog{factories: make(map[string]Factory), log: log}
	c.Register(ElementCreateType, loadElementCreate)
	c.Register(ElementDeleteType, loadElementDelete)
	c.Register(ElementChangeNameType, loadElementChangeName)
	c.Register(ElementChangeTypeType, loadElementChangeType)
	c.Register(ElementChangeParentType, loadElementChangeParent)
	c.Register(ElementMoveUpType, loadElementMoveUp)
	c.Register(ElementMoveDownType, loadElementMoveDown)
	c.Register(ElementPartitionType, loadElementPartition)
	c.Register(RelationCreateType, loadRelationCreate)
	c.Register(RelationDeleteType, loadRelationDelete)
	c.Register(RelationChangeTypeType, loadRelationChangeType)
	c.Register(RelationChangeWeightType, loadRelationChangeWeight)
	c.Register(SnapshotType, loadSnapshot)
	return c
}

// Register adds or replaces the factory for a tag.
func (c *Catalog) Register(tag string, f Factory) {
	c.factories[tag] = f
}

// Tags returns the registered tags in sorted order.
func (c *Catalog) Tags() []string {
	tags := make([]string, 0, len(c.factories))
	for tag := range c.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Create builds one action from a record.
func (c *Catalog) Create(m *model.Model, tag string, data map[string]string) (Action, error) {
	f, ok := c.factories[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag)
	}
	return f(m, data)
}

// SkippedRecord is a persisted record that could not be turned into an action.
type SkippedRecord struct {
	Index int
	Type  string
	Err   error
}

// LoadReport summarizes LoadAll.
type LoadReport struct {
	Loaded  int
	Skipped []SkippedRecord
}

// LoadAll rebuilds the history from persisted records in index order. Actions are
// appended without Do because the loaded model already reflects them. Records with
// unknown tags or dangling references are skipped and reported.
func (c *Catalog) LoadAll(m *model.Model, mgr *Manager, records []model.ActionRecord) LoadReport {
	sorted := append([]model.ActionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var report LoadReport
	for _, rec := range sorted {
		a, err := c.Create(m, rec.Type, rec.Data)
		if err != nil {
			c.log.Warn("Skipping persisted action", "index", rec.Index, "type", rec.Type, "error", err)
			report.Skipped = append(report.Skipped, SkippedRecord{Index: rec.Index, Type: rec.Type, Err: err})
			continue
		}
		mgr.Append(a)
		report.Loaded++
	}
	return report
}

// SaveAll emits the applied actions in chronological order with 1-based indices.
func (c *Catalog) SaveAll(mgr *Manager, emit func(index int, tag string, data map[string]string)) {
	for i, a := range mgr.ActionsInChronologicalOrder() {
		emit(i+1, a.Type(), a.Data())
	}
}
