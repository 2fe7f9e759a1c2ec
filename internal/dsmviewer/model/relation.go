package model

// Relation is a directed, weighted dependency from a consumer to a provider element.
type Relation struct {
	id         int
	consumerID int
	providerID int
	typ        string
	weight     int
	context    string
	deleted    bool
}

func (r *Relation) ID() int { return r.id }

func (r *Relation) ConsumerID() int { return r.consumerID }

func (r *Relation) ProviderID() int { return r.providerID }

func (r *Relation) Type() string { return r.typ }

func (r *Relation) Weight() int { return r.weight }

// Context is free-form text describing the kind of dependency (field, parameter, ...).
func (r *Relation) Context() string { return r.context }

func (r *Relation) IsDeleted() bool { return r.deleted }
