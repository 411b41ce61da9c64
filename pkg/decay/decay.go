package decay

import (
	"context"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/stores"
)

// DuplicateBoost is the partial reinforcement applied when ingestion
// finds existing content instead of creating a new engram.
const DuplicateBoost = 0.1

// defaultHalfLifeDays controls how fast an untouched signal fades.
const defaultHalfLifeDays = 30.0

// epsilon below which a signal change does not count as affected.
const epsilon = 1e-9

/*
Service ages memory signals over time and boosts them on access.  Decay
never deletes an engram; a signal at zero only stops contributing to
ranking.
*/
type Service struct {
	store        stores.Store
	halfLifeDays float64
	clock        func() time.Time
}

type ServiceOption func(*Service)

func New(store stores.Store, options ...ServiceOption) *Service {
	service := &Service{
		store:        store,
		halfLifeDays: defaultHalfLifeDays,
		clock:        time.Now,
	}

	for _, option := range options {
		option(service)
	}

	return service
}

/*
ReinforceAccess raises an engram's signal by boost, clamped at 1.0, and
updates its access bookkeeping.
*/
func (service *Service) ReinforceAccess(
	ctx context.Context, id string, boost float64,
) (*engram.Engram, error) {
	return service.store.ReinforceEngram(ctx, id, boost)
}

/*
RunDecay applies exponential decay to every engram the owner holds,
based on days since last access, and returns how many signals changed.
Repeated runs converge the signal toward zero without ever crossing it,
and never delete anything, so the pass is safe to schedule freely.
*/
func (service *Service) RunDecay(
	ctx context.Context, ownerID string,
) (int, error) {
	engrams, _, err := service.store.ListEngrams(ctx, ownerID, stores.ListOptions{})

	if err != nil {
		return 0, err
	}

	now := service.clock()
	affected := 0

	for _, eng := range engrams {
		if eng.Signal <= 0 {
			continue
		}

		days := now.Sub(eng.AccessedAt).Hours() / 24

		if days <= 0 {
			continue
		}

		decayed := eng.Signal * math.Exp(-days*math.Ln2/service.halfLifeDays)

		if decayed < 0 {
			decayed = 0
		}

		if math.Abs(decayed-eng.Signal) < epsilon {
			continue
		}

		if _, err := service.store.UpdateEngram(ctx, eng.ID, stores.UpdateFields{
			Signal: &decayed,
		}); err != nil {
			return affected, err
		}

		affected++
	}

	log.Info("decay pass complete", "ownerId", ownerID, "affected", affected)

	return affected, nil
}

func WithHalfLife(days float64) ServiceOption {
	return func(service *Service) {
		if days > 0 {
			service.halfLifeDays = days
		}
	}
}

func WithClock(clock func() time.Time) ServiceOption {
	return func(service *Service) {
		service.clock = clock
	}
}
