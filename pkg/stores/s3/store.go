package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/stores"
)

/*
Snapshot is the archived form of one owner's corpus: every engram with
its embedding, plus the synapse edges between them.
*/
type Snapshot struct {
	OwnerID  string           `json:"ownerId"`
	TakenAt  time.Time        `json:"takenAt"`
	Engrams  []engram.Engram  `json:"engrams"`
	Synapses []engram.Synapse `json:"synapses"`
}

/*
ObjectStore is the minimal object storage surface the archive needs;
Conn satisfies it with minio.
*/
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

/*
Archive persists owner snapshots to object storage.  It is a side
facility next to the live store, not a Store implementation; restored
memories re-enter the store as freshly accessed, so recency ranking
starts over for them.
*/
type Archive struct {
	conn  ObjectStore
	clock func() time.Time
}

type ArchiveOption func(*Archive)

func NewArchive(conn ObjectStore, options ...ArchiveOption) *Archive {
	archive := &Archive{
		conn:  conn,
		clock: time.Now,
	}

	for _, option := range options {
		option(archive)
	}

	return archive
}

func WithArchiveClock(clock func() time.Time) ArchiveOption {
	return func(archive *Archive) {
		archive.clock = clock
	}
}

/*
SnapshotOwner archives everything the owner holds and returns the
object key the snapshot was written under.
*/
func (archive *Archive) SnapshotOwner(
	ctx context.Context, store stores.Store, ownerID string,
) (string, error) {
	engrams, _, err := store.ListEngrams(ctx, ownerID, stores.ListOptions{})

	if err != nil {
		return "", err
	}

	snapshot := Snapshot{
		OwnerID: ownerID,
		TakenAt: archive.clock(),
		Engrams: engrams,
	}

	seen := map[string]bool{}

	for _, eng := range engrams {
		synapses, err := store.GetSynapsesFrom(ctx, eng.ID)

		if err != nil {
			return "", err
		}

		for _, syn := range synapses {
			key := syn.SourceID + "->" + syn.TargetID

			if seen[key] {
				continue
			}

			seen[key] = true
			snapshot.Synapses = append(snapshot.Synapses, syn)
		}
	}

	data, err := json.Marshal(snapshot)

	if err != nil {
		return "", errors.ErrStore.WithMessagef("encode snapshot: %s", err)
	}

	key := fmt.Sprintf(
		"owners/%s/%s.json", ownerID, snapshot.TakenAt.UTC().Format("20060102T150405Z"),
	)

	if err := archive.conn.Put(ctx, key, data); err != nil {
		return "", errors.ErrStore.WithMessagef("write snapshot: %s", err)
	}

	log.Info(
		"owner snapshot written",
		"ownerId", ownerID,
		"key", key,
		"engrams", len(snapshot.Engrams),
		"synapses", len(snapshot.Synapses),
	)

	return key, nil
}

/*
RestoreOwner loads a snapshot back into the store.  Engrams keep their
ids, so restoring over a live corpus upserts rather than duplicates;
engrams that fail to restore are logged and skipped.
*/
func (archive *Archive) RestoreOwner(
	ctx context.Context, store stores.Store, ownerID, key string,
) (int, error) {
	data, err := archive.conn.Get(ctx, key)

	if err != nil {
		return 0, errors.ErrStore.WithMessagef("read snapshot: %s", err)
	}

	var snapshot Snapshot

	if err := json.Unmarshal(data, &snapshot); err != nil {
		return 0, errors.ErrStore.WithMessagef("decode snapshot: %s", err)
	}

	if snapshot.OwnerID != ownerID {
		return 0, errors.ErrValidation.WithMessagef(
			"snapshot belongs to owner %s, not %s", snapshot.OwnerID, ownerID,
		)
	}

	restored := 0

	for _, eng := range snapshot.Engrams {
		if _, err := store.CreateEngram(ctx, eng); err != nil {
			log.Warn("engram restore failed", "engramId", eng.ID, "error", err)
			continue
		}

		restored++
	}

	for _, syn := range snapshot.Synapses {
		if err := store.PutSynapse(ctx, syn); err != nil {
			log.Warn(
				"synapse restore failed",
				"sourceId", syn.SourceID,
				"targetId", syn.TargetID,
				"error", err,
			)
		}
	}

	log.Info("owner snapshot restored", "ownerId", ownerID, "key", key, "restored", restored)

	return restored, nil
}
