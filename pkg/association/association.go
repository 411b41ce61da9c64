package association

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/stores"
)

// DefaultWeight is the starting strength for synapses formed between
// facts ingested together.
const DefaultWeight = 0.5

/*
Former manages the synapse graph.  Associations are symmetric: forming a
synapse writes both directions, and re-forming an existing pair keeps
the stronger of the existing and proposed weights.
*/
type Former struct {
	store stores.Store
}

func New(store stores.Store) *Former {
	return &Former{store: store}
}

/*
FormSynapse associates two engrams in both directions at the given
weight.  Weight must sit in (0, 1]; values above 1 clamp to 1.  Forming
a synapse never weakens an existing edge.
*/
func (former *Former) FormSynapse(
	ctx context.Context, sourceID, targetID, ownerID string, weight float64,
) error {
	if sourceID == targetID {
		return errors.ErrValidation.WithMessagef(
			"cannot form synapse from engram %s to itself", sourceID,
		)
	}

	if weight <= 0 {
		return errors.ErrValidation.WithMessagef(
			"synapse weight must be positive, got %f", weight,
		)
	}

	if weight > 1 {
		weight = 1
	}

	if err := former.formDirected(ctx, sourceID, targetID, ownerID, weight); err != nil {
		return err
	}

	return former.formDirected(ctx, targetID, sourceID, ownerID, weight)
}

func (former *Former) formDirected(
	ctx context.Context, sourceID, targetID, ownerID string, weight float64,
) error {
	existing, err := former.store.GetSynapse(ctx, sourceID, targetID)

	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	if existing != nil && existing.Weight >= weight {
		return nil
	}

	if existing != nil {
		log.Debug(
			"strengthening synapse",
			"sourceId", sourceID,
			"targetId", targetID,
			"from", existing.Weight,
			"to", weight,
		)
	}

	return former.store.PutSynapse(ctx, engram.Synapse{
		SourceID: sourceID,
		TargetID: targetID,
		OwnerID:  ownerID,
		Weight:   weight,
	})
}

/*
Neighbors returns the outgoing synapses of an engram, deterministically
ordered by target.
*/
func (former *Former) Neighbors(
	ctx context.Context, id string,
) ([]engram.Synapse, error) {
	return former.store.GetSynapsesFrom(ctx, id)
}
