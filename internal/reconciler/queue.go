package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// writeOp is one desired remote state for a single product key: either an
// upsert to Quantity or a delete.
type writeOp struct {
	ProductID string
	Quantity  int
	Delete    bool
	seq       uint64
}

// applyFunc performs one write-through against the remote store.
type applyFunc func(ctx context.Context, op writeOp) error

// failFunc is invoked when a write-through gives up after retries.
type failFunc func(op writeOp, err error)

// writeQueue serializes write-throughs per product key: at most one write is
// in flight for a given ProductID at any time. While a write is in flight,
// newer desired values for the same key coalesce into a single pending slot,
// last-write-wins. A superseded value is dropped as a stale write; it is
// counted and logged but never sent, so a slow earlier write can never clobber
// a later quantity.
type writeQueue struct {
	apply  applyFunc
	onFail failFunc
	logger *slog.Logger

	mu       sync.Mutex
	seq      uint64
	inflight map[string]uint64   // key -> seq of the op being written
	pending  map[string]*writeOp // key -> newest desired op awaiting its turn
	wg       sync.WaitGroup

	maxTries uint
}

func newWriteQueue(apply applyFunc, onFail failFunc, maxTries uint, logger *slog.Logger) *writeQueue {
	if maxTries == 0 {
		maxTries = 3
	}
	return &writeQueue{
		apply:    apply,
		onFail:   onFail,
		logger:   logger,
		inflight: make(map[string]uint64),
		pending:  make(map[string]*writeOp),
		maxTries: maxTries,
	}
}

// Enqueue schedules a write-through for the given key. If a write for the key
// is already in flight, the op parks in the pending slot, replacing any older
// parked op (which becomes a stale write and is dropped).
func (q *writeQueue) Enqueue(productID string, quantity int, del bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	op := writeOp{ProductID: productID, Quantity: quantity, Delete: del, seq: q.seq}

	if _, busy := q.inflight[productID]; busy {
		if old, ok := q.pending[productID]; ok {
			staleWritesDropped.Inc()
			q.logger.Debug("stale write superseded",
				slog.String("product_id", old.ProductID),
				slog.Uint64("superseded_seq", old.seq),
				slog.Uint64("by_seq", op.seq),
				slog.String("reason", apperrors.ErrStaleWrite.Error()),
			)
		}
		q.pending[productID] = &op
		return
	}

	q.launch(op)
}

// launch starts the write goroutine for op. Caller must hold q.mu.
func (q *writeQueue) launch(op writeOp) {
	q.inflight[op.ProductID] = op.seq
	q.wg.Add(1)
	go q.run(op)
}

func (q *writeQueue) run(op writeOp) {
	defer q.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := backoff.Retry(ctx,
		func() (struct{}, error) {
			return struct{}{}, q.apply(ctx, op)
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(q.maxTries),
	)

	if err != nil {
		writeThroughsTotal.WithLabelValues("error").Inc()
		q.onFail(op, err)
	} else {
		writeThroughsTotal.WithLabelValues("ok").Inc()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, op.ProductID)
	if next, ok := q.pending[op.ProductID]; ok {
		delete(q.pending, op.ProductID)
		q.launch(*next)
	}
}

// Active returns the number of distinct keys with an in-flight or pending
// write. A key that has both counts once.
func (q *writeQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.inflight)
	for key := range q.pending {
		if _, busy := q.inflight[key]; !busy {
			n++
		}
	}
	return n
}

// Flush blocks until all in-flight and pending writes have completed or the
// context is done. Used on shutdown and in tests.
func (q *writeQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		// wg.Add for a promoted pending op happens before the prior op's
		// wg.Done, so Wait observes chained writes.
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
