// Package taskqueue is a durable, bounded FIFO of webhook deliveries
// backed by Pebble. Items survive restarts: anything that was in flight
// when the process died is handed out again on the next Open.
package taskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"postrelay/logger"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
	ErrNotFound    = errors.New("queue item not found")
	// ErrInFlight is returned by Remove for an item a worker already took.
	ErrInFlight = errors.New("queue item is being processed")
)

const (
	pendingPrefix  = "p/"
	inflightPrefix = "f/"
	// undecodable records are parked here so they never block the head
	corruptPrefix = "x/"
)

// Item is one queued delivery.
type Item struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

type entry struct {
	seq      uint64
	inflight bool
}

// Queue is safe for one producer and one consumer; every method may be
// called concurrently.
type Queue struct {
	DB       *pebble.DB
	DataFile string

	capacity int

	mu     sync.Mutex
	seq    uint64
	index  map[string]entry
	ready  chan struct{}
	closed chan struct{}
}

func key(prefix string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, seq))
}

func seqOf(k []byte) (uint64, error) {
	return strconv.ParseUint(string(k[len(pendingPrefix):]), 10, 64)
}

// Open opens (or creates) the queue at dataFile. A capacity <= 0 means
// unbounded.
func Open(dataFile string, capacity int) (*Queue, error) {
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	q := &Queue{
		DB:       db,
		DataFile: dataFile,
		capacity: capacity,
		index:    make(map[string]entry),
		ready:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	if err := q.recover(); err != nil {
		db.Close()
		return nil, err
	}
	if len(q.index) > 0 {
		q.signal()
	}
	return q, nil
}

// recover moves in-flight items back to pending, parks undecodable records
// and rebuilds the index.
func (q *Queue) recover() error {
	iter, err := q.DB.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}

	batch := q.DB.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		inflight := bytes.HasPrefix(k, []byte(inflightPrefix))
		if !inflight && !bytes.HasPrefix(k, []byte(pendingPrefix)) {
			continue
		}
		var item Item
		err := json.Unmarshal(iter.Value(), &item)
		seq, seqErr := seqOf(k)
		if err == nil {
			err = seqErr
		}
		if err != nil {
			if err := parkCorrupt(batch, k, iter.Value(), err); err != nil {
				iter.Close()
				return err
			}
			continue
		}
		if seq > q.seq {
			q.seq = seq
		}
		if inflight {
			if err := batch.Delete(k, nil); err != nil {
				iter.Close()
				return err
			}
			if err := batch.Set(key(pendingPrefix, seq), iter.Value(), nil); err != nil {
				iter.Close()
				return err
			}
		}
		q.index[item.ID] = entry{seq: seq}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return fmt.Errorf("iteration error: %w", err)
	}
	iter.Close()
	return batch.Commit(pebble.Sync)
}

// parkCorrupt moves a record that cannot be decoded out of the queue
// keyspace, keeping the raw bytes for inspection.
func parkCorrupt(batch *pebble.Batch, k, value []byte, cause error) error {
	logger.Warnf("Parking undecodable queue record %s: %v", k, cause)
	if err := batch.Set(append([]byte(corruptPrefix), k...), value, nil); err != nil {
		return err
	}
	return batch.Delete(k, nil)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Enqueue appends payload at the tail and returns the stored item.
func (q *Queue) Enqueue(payload []byte) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isClosed() {
		return Item{}, ErrQueueClosed
	}
	if q.capacity > 0 && len(q.index) >= q.capacity {
		return Item{}, ErrQueueFull
	}

	q.seq++
	item := Item{
		ID:         uuid.NewString(),
		Seq:        q.seq,
		EnqueuedAt: time.Now().UTC(),
		Payload:    json.RawMessage(payload),
	}
	data, err := json.Marshal(item)
	if err != nil {
		return Item{}, fmt.Errorf("failed to marshal queue item: %w", err)
	}
	if err := q.DB.Set(key(pendingPrefix, item.Seq), data, pebble.Sync); err != nil {
		return Item{}, err
	}
	q.index[item.ID] = entry{seq: item.Seq}
	q.signal()
	return item, nil
}

// Dequeue blocks until an item is available, ctx ends, or the queue is
// closed. The item stays in flight until Ack or Nack.
func (q *Queue) Dequeue(ctx context.Context) (Item, error) {
	for {
		item, ok, err := q.takeHead()
		if err != nil || ok {
			return item, err
		}
		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-q.closed:
			return Item{}, ErrQueueClosed
		case <-q.ready:
		}
	}
}

func (q *Queue) takeHead() (Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isClosed() {
		return Item{}, false, ErrQueueClosed
	}

	iter, err := q.DB.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pendingPrefix),
		UpperBound: []byte("p0"),
	})
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		var item Item
		err := json.Unmarshal(iter.Value(), &item)
		seq, seqErr := seqOf(iter.Key())
		if err == nil {
			err = seqErr
		}
		if err != nil {
			batch := q.DB.NewBatch()
			if err := parkCorrupt(batch, iter.Key(), iter.Value(), err); err != nil {
				return Item{}, false, err
			}
			if err := batch.Commit(pebble.Sync); err != nil {
				return Item{}, false, err
			}
			continue
		}

		batch := q.DB.NewBatch()
		if err := batch.Delete(key(pendingPrefix, seq), nil); err != nil {
			return Item{}, false, err
		}
		if err := batch.Set(key(inflightPrefix, seq), iter.Value(), nil); err != nil {
			return Item{}, false, err
		}
		if err := batch.Commit(pebble.Sync); err != nil {
			return Item{}, false, err
		}
		item.Seq = seq
		q.index[item.ID] = entry{seq: seq, inflight: true}

		// more pending items may follow; keep the consumer awake
		q.signal()
		return item, true, nil
	}
	return Item{}, false, iter.Error()
}

// Ack drops a finished in-flight item.
func (q *Queue) Ack(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[id]
	if !ok || !e.inflight {
		return ErrNotFound
	}
	if err := q.DB.Delete(key(inflightPrefix, e.seq), pebble.Sync); err != nil {
		return err
	}
	delete(q.index, id)
	return nil
}

// Nack records a failed attempt. Below maxAttempts the item is requeued at
// the tail; otherwise it is removed and dead is true so the caller can
// dead-letter it.
func (q *Queue) Nack(id string, cause error, maxAttempts int) (dead bool, item Item, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[id]
	if !ok || !e.inflight {
		return false, Item{}, ErrNotFound
	}
	oldKey := key(inflightPrefix, e.seq)
	value, closer, err := q.DB.Get(oldKey)
	if err != nil {
		return false, Item{}, err
	}
	err = json.Unmarshal(value, &item)
	closer.Close()
	if err != nil {
		return false, Item{}, fmt.Errorf("failed to unmarshal queue item: %w", err)
	}

	item.Attempts++
	if cause != nil {
		item.LastError = cause.Error()
	}

	if item.Attempts >= maxAttempts {
		if err := q.DB.Delete(oldKey, pebble.Sync); err != nil {
			return false, Item{}, err
		}
		delete(q.index, id)
		return true, item, nil
	}

	q.seq++
	item.Seq = q.seq
	data, err := json.Marshal(item)
	if err != nil {
		return false, Item{}, fmt.Errorf("failed to marshal queue item: %w", err)
	}
	batch := q.DB.NewBatch()
	if err := batch.Delete(oldKey, nil); err != nil {
		return false, Item{}, err
	}
	if err := batch.Set(key(pendingPrefix, item.Seq), data, nil); err != nil {
		return false, Item{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return false, Item{}, err
	}
	q.index[id] = entry{seq: item.Seq}
	q.signal()
	return false, item, nil
}

// Remove deletes a pending item. In-flight items cannot be removed.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[id]
	if !ok {
		return ErrNotFound
	}
	if e.inflight {
		return ErrInFlight
	}
	if err := q.DB.Delete(key(pendingPrefix, e.seq), pebble.Sync); err != nil {
		return err
	}
	delete(q.index, id)
	return nil
}

// Pending reports whether id is waiting to be dequeued.
func (q *Queue) Pending(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.index[id]
	return ok && !e.inflight
}

// Len counts pending and in-flight items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

// Close wakes blocked consumers and closes the underlying DB.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isClosed() {
		return nil
	}
	close(q.closed)
	return q.DB.Close()
}
