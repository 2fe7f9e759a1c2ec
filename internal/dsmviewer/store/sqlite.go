package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// Store persists a DSM model and its action log in SQLite. It only talks to the
// model through the import and export callbacks.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// LoadReport summarizes a Load. Items that could not be imported are skipped and
// listed in Failures; the rest of the model still loads.
type LoadReport struct {
	Elements  int
	Relations int
	Actions   int
	Failures  []error
}

// NewStore opens or creates the database at dbPath, creating its directory if
// needed, and initializes the schema.
func NewStore(dbPath string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the necessary tables and indexes if they do not exist.
func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			seq INTEGER PRIMARY KEY,
			grp TEXT,
			name TEXT,
			value TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS elements (
			id INTEGER PRIMARY KEY,
			seq INTEGER,
			name TEXT,
			type TEXT,
			ord INTEGER,
			expanded INTEGER,
			hidden INTEGER NOT NULL DEFAULT 0,
			parent_id INTEGER,
			deleted_by INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS relations (
			id INTEGER PRIMARY KEY,
			consumer_id INTEGER,
			provider_id INTEGER,
			type TEXT,
			weight INTEGER,
			context TEXT,
			deleted INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			idx INTEGER PRIMARY KEY,
			type TEXT,
			data TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_seq ON elements(seq);`,
		`CREATE INDEX IF NOT EXISTS idx_relations_consumer ON relations(consumer_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec schema query: %w", err)
		}
	}
	return nil
}

// Save replaces the stored model with the exported one in a single transaction.
// Elements are written parents first so that Load can import them in sequence.
func (s *Store) Save(src model.ExportCallback) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"metadata", "elements", "relations", "actions"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	seq := 0
	for _, group := range src.MetaDataGroups() {
		for _, item := range src.MetaDataGroupItems(group) {
			seq++
			if _, err := tx.Exec(`INSERT INTO metadata (seq, grp, name, value) VALUES (?, ?, ?, ?)`,
				seq, group, item.Name, item.Value); err != nil {
				return fmt.Errorf("failed to save metadata: %w", err)
			}
		}
	}

	seq = 0
	var saveElement func(e *model.Element) error
	saveElement = func(e *model.Element) error {
		seq++
		if _, err := tx.Exec(`
			INSERT INTO elements (id, seq, name, type, ord, expanded, hidden, parent_id, deleted_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID(), seq, e.Name(), e.Type(), e.Order(), e.IsExpanded(), !e.IsIncludedInTree(), e.Parent().ID(), e.DeletedBy()); err != nil {
			return fmt.Errorf("failed to save element %d: %w", e.ID(), err)
		}
		for _, c := range e.AllChildren() {
			if err := saveElement(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, e := range src.ExportedRootElements() {
		if err := saveElement(e); err != nil {
			return err
		}
	}

	for _, r := range src.ExportedRelations() {
		if _, err := tx.Exec(`
			INSERT INTO relations (id, consumer_id, provider_id, type, weight, context, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID(), r.ConsumerID(), r.ProviderID(), r.Type(), r.Weight(), r.Context(), r.IsDeleted()); err != nil {
			return fmt.Errorf("failed to save relation %d: %w", r.ID(), err)
		}
	}

	for _, a := range src.Actions() {
		data, err := json.Marshal(a.Data)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO actions (idx, type, data) VALUES (?, ?, ?)`, a.Index, a.Type, string(data)); err != nil {
			return fmt.Errorf("failed to save action %d: %w", a.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("Model saved", "elements", src.ElementCount(), "relations", src.RelationCount(), "actions", len(src.Actions()))
	return nil
}

// Load imports the stored model into dst. Query and iteration failures abort the
// load; single elements or relations the model rejects are reported and skipped.
func (s *Store) Load(dst model.ImportCallback) (*LoadReport, error) {
	report := &LoadReport{}

	metaRows, err := s.db.Query("SELECT grp, name, value FROM metadata ORDER BY seq")
	if err != nil {
		return nil, err
	}
	if err := eachRow(metaRows, func() error {
		var group, name, value string
		if err := metaRows.Scan(&group, &name, &value); err != nil {
			return err
		}
		dst.ImportMetaDataItem(group, name, value)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	rows, err := s.db.Query("SELECT id, name, type, ord, expanded, hidden, parent_id, deleted_by FROM elements ORDER BY seq")
	if err != nil {
		return nil, err
	}
	if err := eachRow(rows, func() error {
		var id, order, parentID, deletedBy int
		var name, typ string
		var expanded, hidden bool
		if err := rows.Scan(&id, &name, &typ, &order, &expanded, &hidden, &parentID, &deletedBy); err != nil {
			return err
		}
		if _, err := dst.ImportElement(id, name, typ, order, expanded, !hidden, parentID, deletedBy); err != nil {
			report.Failures = append(report.Failures, err)
			return nil
		}
		report.Elements++
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load elements: %w", err)
	}

	relRows, err := s.db.Query("SELECT id, consumer_id, provider_id, type, weight, context, deleted FROM relations ORDER BY id")
	if err != nil {
		return nil, err
	}
	if err := eachRow(relRows, func() error {
		var id, consumerID, providerID, weight int
		var typ, context string
		var deleted bool
		if err := relRows.Scan(&id, &consumerID, &providerID, &typ, &weight, &context, &deleted); err != nil {
			return err
		}
		if _, err := dst.ImportRelation(id, consumerID, providerID, typ, weight, context, deleted); err != nil {
			report.Failures = append(report.Failures, err)
			return nil
		}
		report.Relations++
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}

	actionRows, err := s.db.Query("SELECT idx, type, data FROM actions ORDER BY idx")
	if err != nil {
		return nil, err
	}
	if err := eachRow(actionRows, func() error {
		var index int
		var typ, dataStr string
		if err := actionRows.Scan(&index, &typ, &dataStr); err != nil {
			return err
		}
		data := make(map[string]string)
		if dataStr != "" {
			if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
				report.Failures = append(report.Failures, fmt.Errorf("action %d: %w", index, err))
				return nil
			}
		}
		dst.ImportAction(index, typ, data)
		report.Actions++
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	for _, err := range report.Failures {
		s.log.Warn("Skipped item while loading model", "error", err)
	}
	return report, nil
}

// rowIterator is the part of *sql.Rows that eachRow needs.
type rowIterator interface {
	Next() bool
	Err() error
	Close() error
}

// eachRow calls fn for every row and closes rows. An error from fn stops the
// iteration; otherwise the iteration error of rows is returned.
func eachRow(rows rowIterator, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Err returns the combined failures, or nil.
func (r *LoadReport) Err() error {
	return errors.Join(r.Failures...)
}
