package application

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// Status summarizes the session.
type Status struct {
	Root      string   `json:"root"`
	Elements  int      `json:"elements"`
	Relations int      `json:"relations"`
	Digest    string   `json:"digest"`
	Types     []string `json:"types,omitempty"`
	Dirty     bool     `json:"dirty"`
	Stale     []string `json:"stale,omitempty"`
	UndoText  string   `json:"undo,omitempty"`
	RedoText  string   `json:"redo,omitempty"`
}

func (a *Application) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Root:      a.root,
		Elements:  a.model.ElementCount(),
		Relations: a.model.RelationCount(),
		Digest:    a.model.Digest(),
		Types:     a.model.Elements().ElementTypes(),
		Dirty:     a.dirty,
		Stale:     append([]string(nil), a.stale...),
		UndoText:  a.manager.UndoText(),
		RedoText:  a.manager.RedoText(),
	}
}

// HistoryEntry is one applied action.
type HistoryEntry struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// History lists the applied actions, oldest first.
func (a *Application) History() []HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	applied := a.manager.ActionsInChronologicalOrder()
	entries := make([]HistoryEntry, 0, len(applied))
	for i, action := range applied {
		entries = append(entries, HistoryEntry{Index: i + 1, Type: action.Type(), Title: action.Title()})
	}
	return entries
}

// ElementInfo is a detached description of an element.
type ElementInfo struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Type        string `json:"type,omitempty"`
	Order       int    `json:"order"`
	Depth       int    `json:"depth"`
	Expanded    bool   `json:"expanded"`
	Hidden      bool   `json:"hidden,omitempty"`
	HasChildren bool   `json:"has_children"`
	Match       bool   `json:"match,omitempty"`
}

func describe(e *model.Element, depth int) ElementInfo {
	return ElementInfo{
		ID:          e.ID(),
		Name:        e.Name(),
		FullName:    e.FullName(),
		Type:        e.Type(),
		Order:       e.Order(),
		Depth:       depth,
		Expanded:    e.IsExpanded(),
		Hidden:      !e.IsIncludedInTree(),
		HasChildren: e.HasChildren(),
		Match:       e.IsMatch(),
	}
}

// Tree lists the visible elements in tree order, descending only into
// expanded elements.
func (a *Application) Tree() []ElementInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	var rows []ElementInfo
	var walk func(e *model.Element, depth int)
	walk = func(e *model.Element, depth int) {
		for _, child := range e.Children() {
			rows = append(rows, describe(child, depth))
			if child.IsExpanded() {
				walk(child, depth+1)
			}
		}
	}
	walk(a.model.Elements().Root(), 0)
	return rows
}

// Search finds live elements by full name and marks them for display.
func (a *Application) Search(text string, opts model.SearchOptions) []ElementInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	var found []ElementInfo
	for _, e := range a.model.Elements().SearchElements(text, opts) {
		found = append(found, describe(e, depthOf(e)))
	}
	return found
}

func depthOf(e *model.Element) int {
	depth := 0
	for p := e.Parent(); p != nil && !p.IsRoot(); p = p.Parent() {
		depth++
	}
	return depth
}

// RelationInfo is a detached description of a relation.
type RelationInfo struct {
	ID       int    `json:"id"`
	Consumer string `json:"consumer"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
	Weight   int    `json:"weight"`
	Context  string `json:"context,omitempty"`
}

// ElementDetails describes an element with the relations crossing its boundary.
type ElementDetails struct {
	ElementInfo
	Ingoing  []RelationInfo `json:"ingoing"`
	Outgoing []RelationInfo `json:"outgoing"`
	Internal int            `json:"internal"`
}

func (a *Application) ElementDetails(id int) (*ElementDetails, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.model.Elements().FindElementByID(id)
	if e == nil {
		return nil, fmt.Errorf("%w: element id=%d", model.ErrNotFound, id)
	}
	rel := a.model.Relations()
	return &ElementDetails{
		ElementInfo: describe(e, depthOf(e)),
		Ingoing:     a.relationInfos(rel.FindIngoingRelations(e)),
		Outgoing:    a.relationInfos(rel.FindOutgoingRelations(e)),
		Internal:    len(rel.FindInternalRelations(e)),
	}, nil
}

func (a *Application) relationInfos(list []*model.Relation) []RelationInfo {
	el := a.model.Elements()
	infos := make([]RelationInfo, 0, len(list))
	for _, r := range list {
		info := RelationInfo{ID: r.ID(), Type: r.Type(), Weight: r.Weight(), Context: r.Context()}
		if c := el.FindElementByID(r.ConsumerID()); c != nil {
			info.Consumer = c.FullName()
		}
		if p := el.FindElementByID(r.ProviderID()); p != nil {
			info.Provider = p.FullName()
		}
		infos = append(infos, info)
	}
	return infos
}
