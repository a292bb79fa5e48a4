package coordinator

import (
	"context"
	"log"
	"time"

	"github.com/wasabipesto/niceengine/internal/store"
)

// RunAggregator periodically recomputes every chunk's and base's rolled-up
// statistics from their constituent fields' canon submissions. It exists
// alongside the synchronous recompute in handleSubmit as a self-healing
// pass: if a submit request's recompute is interrupted mid-flight (process
// restart between PromoteCanon and RecomputeBaseStats), the next tick here
// brings the rollups back in sync. Recompute is idempotent, so running it
// on unchanged data is a no-op.
func RunAggregator(ctx context.Context, pg *store.PostgresStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := aggregateOnce(ctx, pg); err != nil {
				log.Printf("[coordinator] aggregation pass failed: %v", err)
			}
		}
	}
}

func aggregateOnce(ctx context.Context, pg *store.PostgresStore) error {
	bases, err := pg.ListBases(ctx)
	if err != nil {
		return err
	}
	for _, base := range bases {
		chunks, err := pg.ListChunks(ctx, base.ID)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := pg.RecomputeChunkStats(ctx, chunk.ID); err != nil {
				return err
			}
		}
		if err := pg.RecomputeBaseStats(ctx, base.ID); err != nil {
			return err
		}
	}
	return nil
}
