package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "model.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New(model.WithStrictWeights(true))
	m.AddMetaData("analyzer", "input", "./src")
	el := m.Elements()
	for _, name := range []string{"app.core.Service", "app.core.Repo", "app.web.Handler", "app.web.View"} {
		_, err := el.IngestElement(name, "type")
		require.NoError(t, err)
	}
	_, err := m.IngestRelation("app.web.Handler", "app.core.Service", "call", 3, "field")
	require.NoError(t, err)
	_, err = m.IngestRelation("app.core.Service", "app.core.Repo", "call", 2, "")
	require.NoError(t, err)
	_, err = m.IngestRelation("app.web.View", "app.web.Handler", "call", 1, "")
	require.NoError(t, err)

	view := el.FindElementByFullName("app.web.View")
	web := el.FindElementByFullName("app.web")
	el.SetExpanded(el.FindElementByFullName("app"), true)
	require.NoError(t, el.RemoveElement(view.ID()))
	require.NoError(t, el.RemoveElement(web.ID()))
	r := m.Relations().FindRelation(el.FindElementByFullName("app.core.Service").ID(), el.FindElementByFullName("app.core.Repo").ID(), "call")
	require.NoError(t, m.Relations().RemoveRelation(r.ID()))

	m.AddAction(1, "elementDelete", map[string]string{"element": "6"})
	m.AddAction(2, "elementDelete", map[string]string{"element": "5"})
	return m
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	src := sampleModel(t)
	require.NoError(t, s.Save(src))

	dst := model.New(model.WithStrictWeights(true))
	report, err := s.Load(dst)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 7, report.Elements)
	assert.Equal(t, 3, report.Relations)
	assert.Equal(t, 2, report.Actions)

	assert.Equal(t, src.Digest(), dst.Digest())
	assert.Equal(t, src.ElementCount(), dst.ElementCount())
	assert.Equal(t, src.RelationCount(), dst.RelationCount())
	assert.Equal(t, src.Actions(), dst.Actions())
	assert.Equal(t, src.MetaDataGroupItems("analyzer"), dst.MetaDataGroupItems("analyzer"))
	assert.True(t, dst.Elements().FindElementByFullName("app").IsExpanded())

	relation := dst.Relations().FindDeletedRelationByID(2)
	require.NotNil(t, relation)
	assert.Equal(t, "", relation.Context())
	assert.Equal(t, "field", dst.Relations().FindRelationByID(1).Context())

	// Restoring the web package must not bring back the separately deleted view.
	el := dst.Elements()
	web := el.FindDeletedElementByID(5)
	require.NotNil(t, web)
	require.NoError(t, el.RestoreElement(web.ID()))
	assert.NotNil(t, el.FindElementByFullName("app.web.Handler"))
	assert.Nil(t, el.FindElementByFullName("app.web.View"))
	require.NoError(t, el.RestoreElement(7))
	assert.Equal(t, 1, el.FindElementByFullName("app.web.View").DirectWeight(6))
}

func TestSaveReplacesPreviousContent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleModel(t)))

	small := model.New()
	_, err := small.Elements().IngestElement("only", "type")
	require.NoError(t, err)
	require.NoError(t, s.Save(small))

	dst := model.New()
	report, err := s.Load(dst)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Elements)
	assert.Zero(t, report.Relations)
	assert.Empty(t, dst.Actions())
	assert.Empty(t, dst.MetaDataGroups())
}

func TestLoadIsolatesBrokenRows(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleModel(t)))

	_, err := s.db.Exec(`INSERT INTO elements (id, seq, name, type, ord, expanded, parent_id, deleted_by) VALUES (50, 100, 'orphan', '', 0, 0, 49, 0)`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO relations (id, consumer_id, provider_id, type, weight, context, deleted) VALUES (60, 50, 1, 'call', 1, '', 0)`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO actions (idx, type, data) VALUES (3, 'snapshot', 'not json')`)
	require.NoError(t, err)

	dst := model.New()
	report, err := s.Load(dst)
	require.NoError(t, err)
	assert.Len(t, report.Failures, 3)
	assert.ErrorIs(t, report.Err(), model.ErrParentNotFound)
	assert.ErrorIs(t, report.Err(), model.ErrNotFound)
	assert.Equal(t, 7, report.Elements)
	assert.Equal(t, 3, report.Relations)
	assert.Equal(t, 2, report.Actions)
}

// failingRows yields n rows and then reports err as the iteration error.
type failingRows struct {
	n      int
	err    error
	closed bool
}

func (r *failingRows) Next() bool {
	if r.n == 0 {
		return false
	}
	r.n--
	return true
}

func (r *failingRows) Err() error   { return r.err }
func (r *failingRows) Close() error { r.closed = true; return nil }

func TestEachRowReportsIterationError(t *testing.T) {
	broken := errors.New("disk I/O error")
	rows := &failingRows{n: 2, err: broken}
	var seen int
	err := eachRow(rows, func() error { seen++; return nil })
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, 2, seen)
	assert.True(t, rows.closed)

	stop := errors.New("scan failed")
	rows = &failingRows{n: 3}
	seen = 0
	err = eachRow(rows, func() error { seen++; return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
	assert.True(t, rows.closed)

	require.NoError(t, eachRow(&failingRows{n: 1}, func() error { return nil }))
}

func TestLoadKeepsHiddenElements(t *testing.T) {
	s := newTestStore(t)
	src := sampleModel(t)
	el := src.Elements()
	repo := el.FindElementByFullName("app.core.Repo")
	require.NoError(t, el.SetIncludedInTree(repo, false))
	require.NoError(t, s.Save(src))

	dst := model.New(model.WithStrictWeights(true))
	_, err := s.Load(dst)
	require.NoError(t, err)
	loaded := dst.Elements().FindElementByFullName("app.core.Repo")
	require.NotNil(t, loaded)
	assert.False(t, loaded.IsIncludedInTree())
	assert.True(t, dst.Elements().FindElementByFullName("app.core.Service").IsIncludedInTree())
	assert.Len(t, dst.Elements().FindElementByFullName("app.core").Children(), 1)
}
