package activitypub

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// Queue hands delivery items to the worker pool. The memory backend
// lives below; the redis backend is in redisqueue.go.
type Queue interface {
	Enqueue(item *domain.DeliveryQueueItem) error
	// Dequeue blocks until an item is available and returns nil
	// once the queue is closed and drained
	Dequeue() *domain.DeliveryQueueItem
	Close()
}

// MemoryQueue is the default in-process backend
type MemoryQueue struct {
	ch        chan *domain.DeliveryQueueItem
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch:   make(chan *domain.DeliveryQueueItem, size),
		done: make(chan struct{}),
	}
}

// Enqueue accepts an item, or reports ErrQueueClosed after Close
func (q *MemoryQueue) Enqueue(item *domain.DeliveryQueueItem) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Dequeue blocks for the next item; once the queue is closed it drains
// what is buffered and then returns nil
func (q *MemoryQueue) Dequeue() *domain.DeliveryQueueItem {
	select {
	case item := <-q.ch:
		return item
	case <-q.done:
		select {
		case item := <-q.ch:
			return item
		default:
			return nil
		}
	}
}

func (q *MemoryQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// DeliveryQueue pushes signed activities to remote inboxes. Each item
// is one (activity, inbox) pair; a failed delivery re-enters the queue
// after an exponential backoff until it either lands or exhausts its
// attempts and is recorded as dead.
type DeliveryQueue struct {
	ctx     *Context
	backend Queue
	wg      sync.WaitGroup

	// Backoff maps the attempt count to the wait before the next
	// try. Swappable so tests do not sleep for real.
	Backoff func(attempts int) time.Duration
}

func NewDeliveryQueue(ctx *Context) *DeliveryQueue {
	return &DeliveryQueue{
		ctx:     ctx,
		backend: NewMemoryQueue(1024),
		Backoff: func(attempts int) time.Duration {
			return time.Duration(1<<attempts) * time.Second
		},
	}
}

// SetBackend swaps the queue backend, to be called before StartWorkers
func (q *DeliveryQueue) SetBackend(backend Queue) {
	q.backend = backend
}

// StartWorkers launches the delivery worker pool
func (q *DeliveryQueue) StartWorkers() {
	workers := q.ctx.Conf.Conf.Federation.Workers
	log.Printf("Queue: starting %d delivery workers", workers)
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop closes the backend and waits for in-flight deliveries
func (q *DeliveryQueue) Stop() {
	q.backend.Close()
	q.wg.Wait()
}

// Submit fans an activity out to its inboxes. Duplicate and local
// inboxes are dropped, inboxes failing the admission policy are
// skipped with a log line. In synchronous mode delivery happens
// inline and failures are logged, never returned, so callers behave
// the same in both modes.
func (q *DeliveryQueue) Submit(activityURI string, activityJSON []byte, senderURI, privateKeyPem string, inboxes []string) {
	seen := make(map[string]bool)
	for _, inbox := range inboxes {
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true

		if q.ctx.IsLocalURI(inbox) {
			continue
		}
		if err := q.ctx.checkURI(inbox); err != nil {
			log.Printf("Queue: skipping inbox %s: %v", inbox, err)
			continue
		}

		item := &domain.DeliveryQueueItem{
			Id:           uuid.New(),
			ActivityURI:  activityURI,
			InboxURI:     inbox,
			SenderURI:    senderURI,
			ActivityJSON: string(activityJSON),
			PrivateKey:   privateKeyPem,
			CreatedAt:    time.Now(),
		}

		if q.ctx.Conf.Conf.Federation.SyncDelivery {
			if err := q.deliver(item); err != nil {
				log.Printf("Queue: synchronous delivery of %s to %s failed: %v", activityURI, inbox, err)
			}
			continue
		}

		if err := q.backend.Enqueue(item); err != nil {
			log.Printf("Queue: enqueue of %s for %s failed: %v", activityURI, inbox, err)
		}
	}
}

func (q *DeliveryQueue) worker(id int) {
	defer q.wg.Done()
	for {
		item := q.backend.Dequeue()
		if item == nil {
			return
		}
		q.process(id, item)
	}
}

// process runs one delivery attempt and decides the item's fate
func (q *DeliveryQueue) process(id int, item *domain.DeliveryQueueItem) {
	err := q.deliver(item)
	if err == nil {
		log.Printf("Queue: worker %d delivered %s to %s", id, item.ActivityURI, item.InboxURI)
		return
	}

	item.Attempts++
	maxAttempts := q.ctx.Conf.Conf.Federation.MaxAttempts
	if item.Attempts >= maxAttempts {
		log.Printf("Queue: worker %d giving up on %s to %s after %d attempts: %v",
			id, item.ActivityURI, item.InboxURI, item.Attempts, err)
		dead := &domain.DeadDelivery{
			Id:          uuid.New(),
			ActivityURI: item.ActivityURI,
			InboxURI:    item.InboxURI,
			Attempts:    item.Attempts,
			LastError:   err.Error(),
		}
		if dbErr := q.ctx.Store.CreateDeadDelivery(dead); dbErr != nil {
			log.Printf("Queue: recording dead delivery of %s failed: %v", item.ActivityURI, dbErr)
		}
		return
	}

	wait := q.Backoff(item.Attempts)
	item.NextRetryAt = time.Now().Add(wait)
	log.Printf("Queue: worker %d retrying %s to %s in %s (attempt %d/%d): %v",
		id, item.ActivityURI, item.InboxURI, wait, item.Attempts, maxAttempts, err)

	time.AfterFunc(wait, func() {
		if err := q.backend.Enqueue(item); err != nil {
			log.Printf("Queue: re-enqueue of %s for %s failed: %v", item.ActivityURI, item.InboxURI, err)
		}
	})
}

// deliver signs and POSTs one activity to one inbox
func (q *DeliveryQueue) deliver(item *domain.DeliveryQueueItem) error {
	key, err := ParsePrivateKey(item.PrivateKey)
	if err != nil {
		return err
	}

	body := []byte(item.ActivityJSON)
	req, err := http.NewRequest(http.MethodPost, item.InboxURI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", item.InboxURI, err)
	}
	PrepareRequestHeaders(req, body)

	if err := SignRequest(req, key, item.SenderURI+"#main-key"); err != nil {
		return err
	}

	resp, err := q.ctx.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", item.InboxURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver to %s: status %d", item.InboxURI, resp.StatusCode)
	}
	return nil
}
