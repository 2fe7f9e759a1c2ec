package actions

import (
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// Type tags of the relation actions.
const (
	RelationCreateType       = "relationCreate"
	RelationDeleteType       = "relationDelete"
	RelationChangeTypeType   = "relationChangeType"
	RelationChangeWeightType = "relationChangeWeight"
)

// RelationCreateAction adds a relation. When the consumer already depends on the
// provider with the same type the weight is merged into that relation and Undo
// takes back only the added weight.
type RelationCreateAction struct {
	model      *model.Model
	consumerID int
	providerID int
	typ        string
	weight     int
	context    string
	relation   *model.Relation
	created    bool
}

func NewRelationCreateAction(m *model.Model, consumerID, providerID int, typ string, weight int, context string) *RelationCreateAction {
	return &RelationCreateAction{model: m, consumerID: consumerID, providerID: providerID, typ: typ, weight: weight, context: context}
}

func loadRelationCreate(m *model.Model, data map[string]string) (Action, error) {
	r, err := relationField(m, data, "relation")
	if err != nil {
		return nil, err
	}
	weight, err := intField(data, "weight")
	if err != nil {
		return nil, err
	}
	created, err := boolField(data, "created")
	if err != nil {
		return nil, err
	}
	return &RelationCreateAction{
		model:      m,
		consumerID: r.ConsumerID(),
		providerID: r.ProviderID(),
		typ:        r.Type(),
		weight:     weight,
		context:    r.Context(),
		relation:   r,
		created:    created,
	}, nil
}

func (a *RelationCreateAction) Type() string { return RelationCreateType }

func (a *RelationCreateAction) Title() string {
	return fmt.Sprintf("Create %s relation %d -> %d", a.typ, a.consumerID, a.providerID)
}

// Relation returns the created or merged relation, or nil before the first Do.
func (a *RelationCreateAction) Relation() *model.Relation { return a.relation }

func (a *RelationCreateAction) Do() error {
	rel := a.model.Relations()
	switch {
	case a.relation == nil:
		r, created, err := rel.AddRelation(a.consumerID, a.providerID, a.typ, a.weight, a.context)
		if err != nil {
			return err
		}
		a.relation, a.created = r, created
		return nil
	case a.created:
		return rel.UnremoveRelation(a.relation.ID())
	default:
		return rel.ChangeRelationWeight(a.relation, a.relation.Weight()+a.weight)
	}
}

func (a *RelationCreateAction) Undo() error {
	if a.relation == nil {
		return fmt.Errorf("%w: relation was never created", model.ErrNotFound)
	}
	rel := a.model.Relations()
	if a.created {
		return rel.RemoveRelation(a.relation.ID())
	}
	return rel.ChangeRelationWeight(a.relation, a.relation.Weight()-a.weight)
}

func (a *RelationCreateAction) Data() map[string]string {
	data := map[string]string{
		"consumer": itoa(a.consumerID),
		"provider": itoa(a.providerID),
		"type":     a.typ,
		"weight":   itoa(a.weight),
		"created":  strconv.FormatBool(a.created),
	}
	if a.relation != nil {
		data["relation"] = itoa(a.relation.ID())
	}
	return data
}

// RelationDeleteAction soft-deletes a relation.
type RelationDeleteAction struct {
	model    *model.Model
	relation *model.Relation
}

func NewRelationDeleteAction(m *model.Model, r *model.Relation) *RelationDeleteAction {
	return &RelationDeleteAction{model: m, relation: r}
}

func loadRelationDelete(m *model.Model, data map[string]string) (Action, error) {
	r, err := relationField(m, data, "relation")
	if err != nil {
		return nil, err
	}
	return NewRelationDeleteAction(m, r), nil
}

func (a *RelationDeleteAction) Type() string { return RelationDeleteType }

func (a *RelationDeleteAction) Title() string {
	return fmt.Sprintf("Delete relation %d", a.relation.ID())
}

func (a *RelationDeleteAction) Do() error {
	return a.model.Relations().RemoveRelation(a.relation.ID())
}

func (a *RelationDeleteAction) Undo() error {
	return a.model.Relations().UnremoveRelation(a.relation.ID())
}

func (a *RelationDeleteAction) Data() map[string]string {
	return map[string]string{"relation": itoa(a.relation.ID())}
}

// RelationChangeTypeAction retypes a relation.
type RelationChangeTypeAction struct {
	model    *model.Model
	relation *model.Relation
	old      string
	new      string
}

func NewRelationChangeTypeAction(m *model.Model, r *model.Relation, typ string) *RelationChangeTypeAction {
	return &RelationChangeTypeAction{model: m, relation: r, old: r.Type(), new: typ}
}

func loadRelationChangeType(m *model.Model, data map[string]string) (Action, error) {
	r, err := relationField(m, data, "relation")
	if err != nil {
		return nil, err
	}
	return &RelationChangeTypeAction{model: m, relation: r, old: data["old"], new: data["new"]}, nil
}

func (a *RelationChangeTypeAction) Type() string { return RelationChangeTypeType }

func (a *RelationChangeTypeAction) Title() string {
	return fmt.Sprintf("Change relation %d type to %s", a.relation.ID(), a.new)
}

func (a *RelationChangeTypeAction) Do() error {
	a.model.Relations().ChangeRelationType(a.relation, a.new)
	return nil
}

func (a *RelationChangeTypeAction) Undo() error {
	a.model.Relations().ChangeRelationType(a.relation, a.old)
	return nil
}

func (a *RelationChangeTypeAction) Data() map[string]string {
	return map[string]string{"relation": itoa(a.relation.ID()), "old": a.old, "new": a.new}
}

// RelationChangeWeightAction sets a new weight on a relation.
type RelationChangeWeightAction struct {
	model    *model.Model
	relation *model.Relation
	old      int
	new      int
}

func NewRelationChangeWeightAction(m *model.Model, r *model.Relation, weight int) *RelationChangeWeightAction {
	return &RelationChangeWeightAction{model: m, relation: r, old: r.Weight(), new: weight}
}

func loadRelationChangeWeight(m *model.Model, data map[string]string) (Action, error) {
	r, err := relationField(m, data, "relation")
	if err != nil {
		return nil, err
	}
	old, err := intField(data, "old")
	if err != nil {
		return nil, err
	}
	weight, err := intField(data, "new")
	if err != nil {
		return nil, err
	}
	return &RelationChangeWeightAction{model: m, relation: r, old: old, new: weight}, nil
}

func (a *RelationChangeWeightAction) Type() string { return RelationChangeWeightType }

func (a *RelationChangeWeightAction) Title() string {
	return fmt.Sprintf("Change relation %d weight to %d", a.relation.ID(), a.new)
}

func (a *RelationChangeWeightAction) Do() error {
	return a.model.Relations().ChangeRelationWeight(a.relation, a.new)
}

func (a *RelationChangeWeightAction) Undo() error {
	return a.model.Relations().ChangeRelationWeight(a.relation, a.old)
}

func (a *RelationChangeWeightAction) Data() map[string]string {
	return map[string]string{"relation": itoa(a.relation.ID()), "old": itoa(a.old), "new": itoa(a.new)}
}
