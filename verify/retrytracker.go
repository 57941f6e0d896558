// Package verify implements the re-verification worker queue consumer
// described in SPEC_FULL.md's supplemented features: a bounded-queue
// (§4.8) consumer that re-checks a previously-unverified object's bytes
// against its declared data root and drives
// ContiguousDataIndex.IncrementVerificationRetryCount /
// SaveVerificationStatus (§6), the second concrete consumer of the
// worker-queue pattern beyond chunk import.
package verify

import (
	"context"
	"encoding/base64"
	"io"

	"github.com/ar-io/contiguous-core/core/merkle"
	"github.com/ar-io/contiguous-core/core/queue"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/log"
)

// Index is the narrow slice of external.ContiguousDataIndex this
// consumer needs.
type Index interface {
	SaveVerificationStatus(ctx context.Context, id string, ok bool) error
	IncrementVerificationRetryCount(ctx context.Context, id string) error
	VerificationRetryCount(ctx context.Context, id string) int
}

// Fetcher retrieves the full bytes of id to re-verify, and its
// authoritative data root. Callers typically pass a thin function over
// a DataSourceChain plus a txoffset.Source.
type Fetcher interface {
	FetchForVerification(ctx context.Context, id string) (stream io.ReadCloser, dataRootB64URL string, err error)
}

// Item is one re-verification job, keyed by transaction id so the
// underlying queue's at-most-once-in-flight-per-key guarantee (§4.8)
// prevents the same id from being re-verified concurrently by two
// workers.
type Item struct {
	ID string
}

func (i Item) Key() string { return i.ID }

// MaxRetries bounds how many times a single id is retried before this
// consumer gives up on it; beyond this it is left permanently
// unverified rather than retried forever.
const MaxRetries = 5

// RetryTracker drains a bounded queue of re-verification jobs,
// recomputing each fetched object's merkle data root and comparing it
// against the declared one.
type RetryTracker struct {
	queue *queue.Bounded
}

// NewRetryTracker builds a RetryTracker with workerCount workers pulling
// from a queue capped at maxQueueSize, backed by fetcher and index.
func NewRetryTracker(workerCount, maxQueueSize int, fetcher Fetcher, index Index, logger *log.Logger) *RetryTracker {
	rt := &RetryTracker{}
	rt.queue = queue.New(queue.Config{
		MaxQueueSize:  maxQueueSize,
		WorkerCount:   workerCount,
		InFlightDedup: true,
	}, func(raw queue.Item) {
		item, ok := raw.(Item)
		if !ok {
			return
		}
		rt.process(context.Background(), item, fetcher, index, logger)
	}, logger)
	return rt
}

func (rt *RetryTracker) process(ctx context.Context, item Item, fetcher Fetcher, index Index, logger *log.Logger) {
	if index.VerificationRetryCount(ctx, item.ID) >= MaxRetries {
		logger.Debugln("verify: giving up on", item.ID, "after", MaxRetries, "retries")
		return
	}

	stream, wantRoot, err := fetcher.FetchForVerification(ctx, item.ID)
	if err != nil {
		logger.Debugln("verify: fetch failed for", item.ID, ":", err)
		_ = index.IncrementVerificationRetryCount(ctx, item.ID)
		return
	}
	defer stream.Close()

	root := merkle.NewStreamingRoot()
	if _, err := io.Copy(root, stream); err != nil {
		logger.Debugln("verify: read failed for", item.ID, ":", err)
		_ = index.IncrementVerificationRetryCount(ctx, item.ID)
		return
	}

	// Individual chunks are already authenticated against the merkle
	// data root by the reassembly pipeline (§4.2) the first time the
	// object is served. This consumer recomputes the same merkle root
	// over the re-fetched bytes to confirm the stored object has not
	// drifted from what was recorded at that time.
	gotRoot := root.Finish()
	ok := encodeMatches(gotRoot[:], wantRoot)
	if err := index.SaveVerificationStatus(ctx, item.ID, ok); err != nil {
		logger.Debugln("verify: failed to save verification status for", item.ID, ":", err)
	}
	if !ok {
		_ = index.IncrementVerificationRetryCount(ctx, item.ID)
	}
}

func encodeMatches(got []byte, wantB64URL string) bool {
	want, err := decodeB64URL(wantB64URL)
	if err != nil || len(want) != len(got) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func decodeB64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.AddContext(err, "unable to decode data root")
	}
	return b, nil
}

// Enqueue schedules id for re-verification. prioritized bypasses the
// queue's fullness check, matching §4.8's prioritized-enqueue rule.
func (rt *RetryTracker) Enqueue(id string, prioritized bool) {
	rt.queue.Enqueue(Item{ID: id}, prioritized)
}

// QueueDepth reports the current backlog, for backpressure probes.
func (rt *RetryTracker) QueueDepth() int { return rt.queue.QueueDepth() }

// Stop drains in-flight re-verifications and refuses new work.
func (rt *RetryTracker) Stop() { rt.queue.Stop() }
