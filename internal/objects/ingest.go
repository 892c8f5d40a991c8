package objects

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CanoaPBC/speckle-server/internal/core"
	"github.com/CanoaPBC/speckle-server/internal/logger"
	"github.com/CanoaPBC/speckle-server/internal/store"
)

// DefaultMaxBatchSize bounds how many objects one sub-batch writes in a
// single statement pair.
const DefaultMaxBatchSize = 250

// maxConcurrentSubBatches bounds in-flight sub-batch writes per ingest call
// so one large request cannot oversubscribe the connection pool.
const maxConcurrentSubBatches = 4

// subBatch is one bounded partition of an ingest request: its object rows
// and closure edges, ready to write.
type subBatch struct {
	objects []*core.Object
	edges   []core.ClosureEdge
}

// ingest persists a collection of raw documents. Ids are assigned
// synchronously for every document first, then the prepared sub-batches are
// dispatched concurrently; the returned id list preserves global input
// order even though writes complete out of order.
//
// Sub-batches are independent units: each issues two bulk statements
// (objects, then closures) with no surrounding transaction, so a failure in
// one sub-batch does not roll back another's committed writes. Every write
// is ignore-on-conflict, which makes retrying a failed ingest safe.
func ingest(ctx context.Context, repo store.Repository, docs []core.Document, maxBatchSize int) ([]string, error) {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(docs))
	var batches []subBatch
	current := subBatch{}

	for _, doc := range docs {
		obj, edges, err := prepare(doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, obj.ID)
		current.objects = append(current.objects, obj)
		current.edges = append(current.edges, edges...)
		if len(current.objects) == maxBatchSize {
			batches = append(batches, current)
			current = subBatch{}
		}
	}
	if len(current.objects) > 0 {
		batches = append(batches, current)
	}

	batchID := uuid.NewString()
	logger.Log("ingest %s: %d objects in %d sub-batches", batchID, len(docs), len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSubBatches)
	for i, batch := range batches {
		g.Go(func() error {
			if _, err := repo.CreateObjects(gctx, batch.objects); err != nil {
				return err
			}
			if err := repo.CreateClosures(gctx, batch.edges); err != nil {
				return err
			}
			logger.Log("ingest %s: sub-batch %d wrote %d objects, %d edges",
				batchID, i, len(batch.objects), len(batch.edges))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ids, nil
}
