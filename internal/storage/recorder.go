package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/attune/pkg/types"
)

// saveTimeout bounds a single background store write.
const saveTimeout = 5 * time.Second

// Recorder is the async persistence front door the engine writes
// through. Records are queued on a bounded channel and drained by a
// single background goroutine; when the queue is full, records are
// dropped and counted rather than blocking the conversation turn.
type Recorder struct {
	store  RecordStore
	logger *zap.Logger

	queue chan *types.Record
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	dropped uint64
	closed  bool
}

// NewRecorder starts a recorder draining into the given store.
func NewRecorder(store RecordStore, queueSize int, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	r := &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan *types.Record, queueSize),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record encodes the payload and enqueues the record. It never blocks:
// on a full queue the record is dropped and the drop is logged.
func (r *Recorder) Record(kind types.RecordKind, conversationID, key string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("record payload not serializable",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Error(err))
		return
	}

	rec := &types.Record{
		Kind:           kind,
		ConversationID: conversationID,
		Key:            key,
		Payload:        data,
		UpdatedAt:      time.Now().UTC(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	select {
	case r.queue <- rec:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn("record queue full, dropping record",
			zap.String("kind", string(kind)),
			zap.String("conversation_id", conversationID),
			zap.Uint64("total_dropped", dropped))
	}
}

// Dropped returns the number of records dropped because of a full queue.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting records, drains the queue, and closes the
// underlying store.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()

	if err := r.store.Close(); err != nil {
		return fmt.Errorf("close record store: %w", err)
	}
	return nil
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.queue:
			r.save(rec)
		case <-r.done:
			// Flush whatever is still queued before exiting.
			for {
				select {
				case rec := <-r.queue:
					r.save(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) save(rec *types.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Warn("record save failed",
			zap.String("kind", string(rec.Kind)),
			zap.String("conversation_id", rec.ConversationID),
			zap.String("key", rec.Key),
			zap.Error(err))
	}
}
