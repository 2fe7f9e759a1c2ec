package model

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Digest returns a BLAKE3 hash over the live structure: elements in tree order
// with their parent, name and type, followed by the active relations. Two models
// with equal digests present the same matrix.
func (m *Model) Digest() string {
	var buf bytes.Buffer
	var walk func(e *Element)
	walk = func(e *Element) {
		fmt.Fprintf(&buf, "e|%d|%d|%s|%s\n", e.id, e.parentID, e.name, e.Type())
		for _, c := range e.Children() {
			walk(c)
		}
	}
	for _, e := range m.elements.RootElements() {
		walk(e)
	}
	for _, r := range m.relations.Relations() {
		if m.relations.isActive(r) {
			fmt.Fprintf(&buf, "r|%d|%d|%d|%s|%d\n", r.id, r.consumerID, r.providerID, r.typ, r.weight)
		}
	}
	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
