package actions

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// fixture builds
//
//	app
//	  core: svc, repo, util
//	  web
//
// with relations web->svc (2), svc->repo (3) and repo->util (1).
type fixture struct {
	m                               *model.Model
	app, core, svc, repo, util, web *model.Element
	webToSvc, svcToRepo, repoToUtil *model.Relation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := model.New(model.WithStrictWeights(true))
	f := &fixture{m: m}
	el := m.Elements()
	add := func(name string, parent *model.Element) *model.Element {
		parentID := 0
		if parent != nil {
			parentID = parent.ID()
		}
		e, err := el.AddElement(name, "pkg", parentID)
		require.NoError(t, err)
		return e
	}
	f.app = add("app", nil)
	f.core = add("core", f.app)
	f.svc = add("svc", f.core)
	f.repo = add("repo", f.core)
	f.util = add("util", f.core)
	f.web = add("web", f.app)

	rel := func(c, p *model.Element, w int) *model.Relation {
		r, _, err := m.Relations().AddRelation(c.ID(), p.ID(), "use", w, "")
		require.NoError(t, err)
		return r
	}
	f.webToSvc = rel(f.web, f.svc, 2)
	f.svcToRepo = rel(f.svc, f.repo, 3)
	f.repoToUtil = rel(f.repo, f.util, 1)
	return f
}

// state renders the live structure: visible elements with their position and
// weights, and the active relations.
func state(m *model.Model) []string {
	el, rel := m.Elements(), m.Relations()
	var lines []string
	for _, e := range el.Elements() {
		var children []int
		for _, c := range e.Children() {
			children = append(children, c.ID())
		}
		lines = append(lines, fmt.Sprintf("e%d %s %s parent=%d order=%d children=%v expanded=%v direct=%v weights=%v",
			e.ID(), e.Name(), e.Type(), e.Parent().ID(), e.Order(), children, e.IsExpanded(),
			e.DirectWeights(), e.AggregatedWeights()))
	}
	for _, r := range rel.Relations() {
		if rel.FindRelationByID(r.ID()) != nil && el.FindElementByID(r.ConsumerID()) != nil && el.FindElementByID(r.ProviderID()) != nil {
			lines = append(lines, fmt.Sprintf("r%d %d->%d %s %d", r.ID(), r.ConsumerID(), r.ProviderID(), r.Type(), r.Weight()))
		}
	}
	return lines
}

func TestEveryActionUndoesExactly(t *testing.T) {
	cases := []struct {
		name   string
		action func(f *fixture) Action
	}{
		{"create element", func(f *fixture) Action { return NewElementCreateAction(f.m, "api", "pkg", f.app.ID()) }},
		{"delete element", func(f *fixture) Action { return NewElementDeleteAction(f.m, f.core) }},
		{"delete leaf", func(f *fixture) Action { return NewElementDeleteAction(f.m, f.web) }},
		{"rename element", func(f *fixture) Action { return NewElementChangeNameAction(f.m, f.svc, "service") }},
		{"retype element", func(f *fixture) Action { return NewElementChangeTypeAction(f.m, f.svc, "class") }},
		{"reparent element", func(f *fixture) Action { return NewElementChangeParentAction(f.m, f.repo, f.web) }},
		{"move up", func(f *fixture) Action { return NewElementMoveUpAction(f.m, f.repo) }},
		{"move down", func(f *fixture) Action { return NewElementMoveDownAction(f.m, f.svc) }},
		{"partition", func(f *fixture) Action { return NewElementPartitionAction(f.m, f.core, []int{2, 0, 1}) }},
		{"create relation", func(f *fixture) Action { return NewRelationCreateAction(f.m, f.util.ID(), f.web.ID(), "use", 4, "") }},
		{"merge relation", func(f *fixture) Action { return NewRelationCreateAction(f.m, f.web.ID(), f.svc.ID(), "use", 4, "") }},
		{"delete relation", func(f *fixture) Action { return NewRelationDeleteAction(f.m, f.svcToRepo) }},
		{"retype relation", func(f *fixture) Action { return NewRelationChangeTypeAction(f.m, f.svcToRepo, "call") }},
		{"reweight relation", func(f *fixture) Action { return NewRelationChangeWeightAction(f.m, f.svcToRepo, 9) }},
		{"snapshot", func(f *fixture) Action { return NewSnapshotAction(f.m, "baseline") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.m.Elements().SetExpanded(f.app, true)
			f.m.Elements().SetExpanded(f.core, true)
			mgr := NewManager(nil)
			before := state(f.m)

			require.NoError(t, mgr.Add(tc.action(f)))
			after := state(f.m)

			require.NoError(t, mgr.Undo())
			assert.Equal(t, before, state(f.m))

			require.NoError(t, mgr.Redo())
			assert.Equal(t, after, state(f.m))
		})
	}
}

func TestManagerHistory(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(nil)
	assert.False(t, mgr.CanUndo())
	assert.ErrorIs(t, mgr.Undo(), ErrNothingToUndo)
	assert.ErrorIs(t, mgr.Redo(), ErrNothingToRedo)
	assert.Empty(t, mgr.UndoText())

	rename := NewElementChangeNameAction(f.m, f.svc, "service")
	retype := NewElementChangeTypeAction(f.m, f.svc, "class")
	require.NoError(t, mgr.Add(rename))
	require.NoError(t, mgr.Add(retype))
	assert.Equal(t, retype.Title(), mgr.UndoText())

	require.NoError(t, mgr.Undo())
	assert.Equal(t, "pkg", f.svc.Type())
	assert.Equal(t, "service", f.svc.Name())
	assert.True(t, mgr.CanRedo())
	assert.Equal(t, retype.Title(), mgr.RedoText())

	require.NoError(t, mgr.Undo())
	assert.Equal(t, "svc", f.svc.Name())
	assert.ErrorIs(t, mgr.Undo(), ErrNothingToUndo)

	require.NoError(t, mgr.Redo())
	assert.Equal(t, []Action{rename}, mgr.ActionsInChronologicalOrder())

	// A new edit drops the redo tail.
	move := NewElementMoveDownAction(f.m, f.svc)
	require.NoError(t, mgr.Add(move))
	assert.False(t, mgr.CanRedo())
	assert.Equal(t, []Action{rename, move}, mgr.ActionsInChronologicalOrder())

	mgr.Clear()
	assert.False(t, mgr.CanUndo())
	assert.Empty(t, mgr.ActionsInChronologicalOrder())
}

func TestFailedActionIsNotRecorded(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(nil)

	err := mgr.Add(NewElementMoveUpAction(f.m, f.svc))
	assert.ErrorIs(t, err, ErrNoSibling)
	err = mgr.Add(NewElementChangeParentAction(f.m, f.app, f.svc))
	assert.ErrorIs(t, err, model.ErrCycleDetected)
	err = mgr.Add(NewElementPartitionAction(f.m, f.core, []int{0, 0, 1}))
	assert.ErrorIs(t, err, model.ErrInvalidPermutation)

	assert.False(t, mgr.CanUndo())
}

func TestRedoOfCreateKeepsIDs(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(nil)

	create := NewElementCreateAction(f.m, "api", "pkg", f.app.ID())
	require.NoError(t, mgr.Add(create))
	id := create.Element().ID()
	rel := NewRelationCreateAction(f.m, id, f.svc.ID(), "use", 1, "")
	require.NoError(t, mgr.Add(rel))
	relID := rel.Relation().ID()

	require.NoError(t, mgr.Undo())
	require.NoError(t, mgr.Undo())
	assert.Nil(t, f.m.Elements().FindElementByID(id))

	require.NoError(t, mgr.Redo())
	require.NoError(t, mgr.Redo())
	assert.Same(t, create.Element(), f.m.Elements().FindElementByID(id))
	assert.Same(t, rel.Relation(), f.m.Relations().FindRelationByID(relID))
	assert.Equal(t, 1, create.Element().DirectWeight(f.svc.ID()))
}

func TestMoveDownResolvesSiblingWhenRun(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(nil)

	action := NewElementMoveDownAction(f.m, f.repo)
	require.NoError(t, mgr.Add(action))
	assert.Equal(t, []*model.Element{f.svc, f.util, f.repo}, f.core.Children())
	assert.Equal(t, map[string]string{"element": fmt.Sprint(f.repo.ID())}, action.Data())
	require.NoError(t, mgr.Undo())

	// Rehydrate the record after a new sibling was inserted below repo.
	extra, err := f.m.Elements().AddElement("cache", "pkg", f.core.ID())
	require.NoError(t, err)
	require.True(t, f.m.Elements().Swap(extra, f.util))
	require.Equal(t, []*model.Element{f.svc, f.repo, extra, f.util}, f.core.Children())

	loaded, err := NewCatalog(nil).Create(f.m, ElementMoveDownType, action.Data())
	require.NoError(t, err)
	require.NoError(t, loaded.Do())
	assert.Equal(t, []*model.Element{f.svc, extra, f.repo, f.util}, f.core.Children())
}

func TestCatalogRoundTrip(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(nil)
	catalog := NewCatalog(nil)
	original := state(f.m)

	create := NewElementCreateAction(f.m, "api", "pkg", f.app.ID())
	require.NoError(t, mgr.Add(create))
	require.NoError(t, mgr.Add(NewRelationCreateAction(f.m, f.web.ID(), f.svc.ID(), "use", 5, "")))
	require.NoError(t, mgr.Add(NewElementChangeParentAction(f.m, f.util, f.web)))
	require.NoError(t, mgr.Add(NewElementPartitionAction(f.m, f.core, []int{1, 0})))
	require.NoError(t, mgr.Add(NewRelationChangeWeightAction(f.m, f.repoToUtil, 7)))
	require.NoError(t, mgr.Add(NewElementDeleteAction(f.m, f.core)))
	require.NoError(t, mgr.Add(NewSnapshotAction(f.m, "done")))
	require.NoError(t, mgr.Add(NewElementChangeNameAction(f.m, create.Element(), "rest")))
	// Undone actions are not saved.
	require.NoError(t, mgr.Add(NewRelationDeleteAction(f.m, f.webToSvc)))
	require.NoError(t, mgr.Undo())

	var records []model.ActionRecord
	catalog.SaveAll(mgr, func(index int, tag string, data map[string]string) {
		records = append(records, model.ActionRecord{Index: index, Type: tag, Data: data})
	})
	require.Len(t, records, 8)
	assert.Equal(t, 1, records[0].Index)
	assert.Equal(t, ElementCreateType, records[0].Type)
	assert.Equal(t, SnapshotType, records[6].Type)

	// Rebuild the history from the records in reverse order plus noise.
	shuffled := []model.ActionRecord{{Index: 99, Type: "elementExplode", Data: map[string]string{}}}
	for i := len(records) - 1; i >= 0; i-- {
		shuffled = append(shuffled, records[i])
	}
	shuffled = append(shuffled, model.ActionRecord{Index: 100, Type: ElementDeleteType, Data: map[string]string{"element": "4242"}})

	loaded := NewManager(nil)
	report := catalog.LoadAll(f.m, loaded, shuffled)
	assert.Equal(t, 8, report.Loaded)
	require.Len(t, report.Skipped, 2)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrUnknownAction)
	assert.ErrorIs(t, report.Skipped[1].Err, ErrInvalidRecord)

	snapshots := loaded.Snapshots()
	require.Len(t, snapshots, 1)
	assert.False(t, snapshots[0].Matches())
	require.NoError(t, loaded.Undo())
	assert.True(t, snapshots[0].Matches())

	for loaded.CanUndo() {
		require.NoError(t, loaded.Undo())
	}
	assert.Equal(t, original, state(f.m))
}

func TestUndoToSnapshot(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(nil)

	require.NoError(t, mgr.Add(NewElementChangeNameAction(f.m, f.svc, "service")))
	require.NoError(t, mgr.Add(NewSnapshotAction(f.m, "named")))
	snapshot := mgr.Snapshots()[0]
	require.NoError(t, mgr.Add(NewElementDeleteAction(f.m, f.web)))
	require.NoError(t, mgr.Add(NewRelationChangeWeightAction(f.m, f.svcToRepo, 1)))
	assert.False(t, snapshot.Matches())

	assert.ErrorIs(t, mgr.UndoToSnapshot("missing"), ErrSnapshotNotFound)
	require.NoError(t, mgr.UndoToSnapshot("named"))
	assert.True(t, snapshot.Matches())
	assert.Equal(t, "service", f.svc.Name())
	assert.Equal(t, snapshot.Title(), mgr.UndoText())
	assert.True(t, mgr.CanRedo())
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)
	catalog := NewCatalog(nil)

	_, err := catalog.Create(f.m, ElementPartitionType, map[string]string{"element": fmt.Sprint(f.core.ID()), "sequence": "1,x"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = catalog.Create(f.m, RelationChangeWeightType, map[string]string{"relation": fmt.Sprint(f.svcToRepo.ID()), "old": "3"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = catalog.Create(f.m, ElementMoveUpType, map[string]string{})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	a, err := catalog.Create(f.m, ElementPartitionType, map[string]string{"element": fmt.Sprint(f.core.ID()), "sequence": "2,0,1"})
	require.NoError(t, err)
	assert.Equal(t, "2,0,1", a.Data()["sequence"])
	assert.Contains(t, catalog.Tags(), SnapshotType)
}
