package kv

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/writeaheadlog"
)

// EmbeddedStore is the log-structured, durable, no-TTL backend: every
// mutation is appended to a write-ahead log and the in-memory index is
// rebuilt by replaying it at startup. Writes are coalesced into the log
// by a background goroutine roughly every 100ms rather than fsyncing per
// key, matching §4.5's "background commit coalescing (~100 ms)".
type EmbeddedStore struct {
	wal *writeaheadlog.WAL

	mu    sync.Mutex
	index map[string][]byte

	pendingMu sync.Mutex
	pending   []pendingOp

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type walRecord struct {
	Key     string `json:"key"`
	Value   []byte `json:"value"`
	Deleted bool   `json:"deleted"`
}

type pendingOp struct {
	record walRecord
	result chan error
}

const embeddedUpdateName = "kv-record"

// NewEmbeddedStore opens (or creates) a WAL-backed store at path,
// replaying any prior transactions to rebuild the in-memory index.
func NewEmbeddedStore(path string) (*EmbeddedStore, error) {
	txns, wal, err := writeaheadlog.New(path)
	if err != nil {
		return nil, errors.AddContext(err, "unable to open embedded kv write-ahead log")
	}

	es := &EmbeddedStore{
		wal:    wal,
		index:  make(map[string][]byte),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	for _, txn := range txns {
		for _, update := range txn.Updates {
			if update.Name != embeddedUpdateName {
				continue
			}
			var rec walRecord
			if err := json.Unmarshal(update.Instructions, &rec); err != nil {
				continue
			}
			es.applyLocked(rec)
		}
		if err := txn.SignalUpdatesApplied(); err != nil {
			return nil, errors.AddContext(err, "unable to signal recovered wal transaction applied")
		}
	}

	go es.commitLoop()
	return es, nil
}

func (es *EmbeddedStore) applyLocked(rec walRecord) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if rec.Deleted {
		delete(es.index, rec.Key)
		return
	}
	es.index[rec.Key] = rec.Value
}

func (es *EmbeddedStore) commitLoop() {
	defer close(es.doneCh)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			es.flush()
		case <-es.stopCh:
			es.flush()
			return
		}
	}
}

func (es *EmbeddedStore) flush() {
	es.pendingMu.Lock()
	batch := es.pending
	es.pending = nil
	es.pendingMu.Unlock()

	if len(batch) == 0 {
		return
	}

	updates := make([]writeaheadlog.Update, 0, len(batch))
	for _, op := range batch {
		instr, err := json.Marshal(op.record)
		if err != nil {
			op.result <- errors.AddContext(err, "unable to marshal kv record")
			continue
		}
		updates = append(updates, writeaheadlog.Update{Name: embeddedUpdateName, Version: 1, Instructions: instr})
	}

	txn, err := es.wal.NewTransaction(updates)
	if err != nil {
		for _, op := range batch {
			op.result <- errors.AddContext(err, "unable to create wal transaction")
		}
		return
	}
	if err := <-txn.SignalSetupComplete(); err != nil {
		for _, op := range batch {
			op.result <- errors.AddContext(err, "wal transaction setup failed")
		}
		return
	}

	for _, op := range batch {
		es.applyLocked(op.record)
	}

	if err := txn.SignalUpdatesApplied(); err != nil {
		for _, op := range batch {
			op.result <- errors.AddContext(err, "unable to signal wal updates applied")
		}
		return
	}
	for _, op := range batch {
		op.result <- nil
	}
}

func (es *EmbeddedStore) submit(rec walRecord) error {
	result := make(chan error, 1)
	es.pendingMu.Lock()
	es.pending = append(es.pending, pendingOp{record: rec, result: result})
	es.pendingMu.Unlock()
	return <-result
}

func (es *EmbeddedStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	v, ok := es.index[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (es *EmbeddedStore) Has(ctx context.Context, key []byte) (bool, error) {
	_, ok, err := es.Get(ctx, key)
	return ok, err
}

func (es *EmbeddedStore) Set(_ context.Context, key, value []byte, allowOverwrite bool, _ time.Duration) error {
	es.mu.Lock()
	_, exists := es.index[string(key)]
	es.mu.Unlock()
	if exists && !allowOverwrite {
		return ErrWriteOnce(key)
	}
	return es.submit(walRecord{Key: string(key), Value: value})
}

func (es *EmbeddedStore) Del(_ context.Context, key []byte) error {
	return es.submit(walRecord{Key: string(key), Deleted: true})
}

func (es *EmbeddedStore) Close() error {
	es.closeOnce.Do(func() {
		close(es.stopCh)
		<-es.doneCh
	})
	return es.wal.Close()
}
