package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// ArchiveVersion is written into every archive and checked on read.
const ArchiveVersion = 1

// ErrUnsupportedArchive is returned for archives written by an incompatible version.
var ErrUnsupportedArchive = errors.New("unsupported archive version")

type archive struct {
	Version   int               `json:"version"`
	MetaData  []archiveGroup    `json:"metadata"`
	Elements  []archiveElement  `json:"elements"`
	Relations []archiveRelation `json:"relations"`
	Actions   []archiveAction   `json:"actions"`
}

type archiveGroup struct {
	Name  string               `json:"name"`
	Items []model.MetaDataItem `json:"items"`
}

type archiveElement struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Order     int    `json:"order"`
	Expanded  bool   `json:"expanded,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Parent    int    `json:"parent"`
	DeletedBy int    `json:"deletedBy,omitempty"`
}

type archiveRelation struct {
	ID       int    `json:"id"`
	Consumer int    `json:"consumer"`
	Provider int    `json:"provider"`
	Type     string `json:"type"`
	Weight   int    `json:"weight"`
	Context  string `json:"context,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
}

type archiveAction struct {
	Index int               `json:"index"`
	Type  string            `json:"type"`
	Data  map[string]string `json:"data"`
}

// ReadReport summarizes ReadArchive. Rejected items are listed in Failures.
type ReadReport struct {
	Elements  int
	Relations int
	Actions   int
	Failures  []error
}

// Err returns the combined failures, or nil.
func (r *ReadReport) Err() error {
	return errors.Join(r.Failures...)
}

// WriteArchive writes the model as zstd-compressed JSON. Soft-deleted elements
// and relations are included so a saved action log can still be undone.
func WriteArchive(w io.Writer, src model.ExportCallback) error {
	doc := archive{Version: ArchiveVersion}
	for _, group := range src.MetaDataGroups() {
		doc.MetaData = append(doc.MetaData, archiveGroup{Name: group, Items: src.MetaDataGroupItems(group)})
	}
	var walk func(e *model.Element)
	walk = func(e *model.Element) {
		doc.Elements = append(doc.Elements, archiveElement{
			ID:        e.ID(),
			Name:      e.Name(),
			Type:      e.Type(),
			Order:     e.Order(),
			Expanded:  e.IsExpanded(),
			Hidden:    !e.IsIncludedInTree(),
			Parent:    e.Parent().ID(),
			DeletedBy: e.DeletedBy(),
		})
		for _, c := range e.AllChildren() {
			walk(c)
		}
	}
	for _, e := range src.ExportedRootElements() {
		walk(e)
	}
	for _, r := range src.ExportedRelations() {
		doc.Relations = append(doc.Relations, archiveRelation{
			ID:       r.ID(),
			Consumer: r.ConsumerID(),
			Provider: r.ProviderID(),
			Type:     r.Type(),
			Weight:   r.Weight(),
			Context:  r.Context(),
			Deleted:  r.IsDeleted(),
		})
	}
	for _, a := range src.Actions() {
		doc.Actions = append(doc.Actions, archiveAction{Index: a.Index, Type: a.Type, Data: a.Data})
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := json.NewEncoder(encoder).Encode(doc); err != nil {
		encoder.Close()
		return fmt.Errorf("encoding archive: %w", err)
	}
	return encoder.Close()
}

// ReadArchive decodes an archive into dst. Elements and relations the model
// rejects are skipped and reported.
func ReadArchive(r io.Reader, dst model.ImportCallback) (*ReadReport, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	var doc archive
	if err := json.NewDecoder(decoder).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	if doc.Version != ArchiveVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedArchive, doc.Version)
	}

	report := &ReadReport{}
	for _, g := range doc.MetaData {
		for _, item := range g.Items {
			dst.ImportMetaDataItem(g.Name, item.Name, item.Value)
		}
	}
	for _, e := range doc.Elements {
		if _, err := dst.ImportElement(e.ID, e.Name, e.Type, e.Order, e.Expanded, !e.Hidden, e.Parent, e.DeletedBy); err != nil {
			report.Failures = append(report.Failures, err)
			continue
		}
		report.Elements++
	}
	for _, rel := range doc.Relations {
		if _, err := dst.ImportRelation(rel.ID, rel.Consumer, rel.Provider, rel.Type, rel.Weight, rel.Context, rel.Deleted); err != nil {
			report.Failures = append(report.Failures, err)
			continue
		}
		report.Relations++
	}
	for _, a := range doc.Actions {
		dst.ImportAction(a.Index, a.Type, a.Data)
		report.Actions++
	}
	return report, nil
}

// SaveArchive writes the model to a .dsm file.
func SaveArchive(path string, src model.ExportCallback) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteArchive(file, src); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadArchive reads a .dsm file into dst.
func LoadArchive(path string, dst model.ImportCallback) (*ReadReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadArchive(file, dst)
}
