package model

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
)

// weightAggregator keeps the direct and aggregated weight maps of every element
// consistent with the set of active relations.
type weightAggregator struct {
	elements *ElementModel
	strict   bool
	log      *logger.Logger
}

// apply adds delta for the relation consumer->provider to the direct map of the
// consumer and to the aggregated map of every (consumer ancestor, provider
// ancestor) pair, both inclusive. Pairs of an element with itself are skipped.
func (w *weightAggregator) apply(consumer, provider *Element, delta int) {
	if delta == 0 {
		return
	}
	w.adjust(consumer, consumer.directWeights, provider.id, delta)
	for ca := consumer; ca != nil && !ca.IsRoot(); ca = ca.Parent() {
		for pa := provider; pa != nil && !pa.IsRoot(); pa = pa.Parent() {
			if ca.id != pa.id {
				w.adjust(ca, ca.weights, pa.id, delta)
			}
		}
	}
}

func (w *weightAggregator) adjust(owner *Element, weights map[int]int, key, delta int) {
	value := weights[key] + delta
	if value < 0 {
		err := fmt.Errorf("%w: element id=%d other id=%d current=%d delta=%d", ErrWeightUnderflow, owner.id, key, weights[key], delta)
		if w.strict {
			panic(err)
		}
		w.log.Warn("Weight inconsistency clamped to zero", "error", err)
		value = 0
	}
	if value == 0 {
		delete(weights, key)
		return
	}
	weights[key] = value
}
