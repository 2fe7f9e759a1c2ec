package actions

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

const SnapshotType = "snapshot"

// SnapshotAction marks a named point in the history. It leaves the model alone
// and remembers the model digest at the time it was taken.
type SnapshotAction struct {
	model  *model.Model
	name   string
	digest string
}

func NewSnapshotAction(m *model.Model, name string) *SnapshotAction {
	return &SnapshotAction{model: m, name: name}
}

func loadSnapshot(m *model.Model, data map[string]string) (Action, error) {
	name, err := stringField(data, "name")
	if err != nil {
		return nil, err
	}
	return &SnapshotAction{model: m, name: name, digest: data["digest"]}, nil
}

func (a *SnapshotAction) Type() string { return SnapshotType }

func (a *SnapshotAction) Title() string { return fmt.Sprintf("Snapshot %s", a.name) }

func (a *SnapshotAction) Name() string { return a.name }

// Digest is the model digest taken by the first Do.
func (a *SnapshotAction) Digest() string { return a.digest }

// Matches reports whether the model is structurally back at this snapshot.
func (a *SnapshotAction) Matches() bool {
	return a.digest != "" && a.digest == a.model.Digest()
}

func (a *SnapshotAction) Do() error {
	if a.digest == "" {
		a.digest = a.model.Digest()
	}
	return nil
}

func (a *SnapshotAction) Undo() error { return nil }

func (a *SnapshotAction) Data() map[string]string {
	return map[string]string{"name": a.name, "digest": a.digest}
}
