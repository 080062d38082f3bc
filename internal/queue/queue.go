package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"traderesonance/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// EventQueue is a bounded in-memory queue of entry change events fanned out
// to subscribers by a single worker
type EventQueue struct {
	items    chan models.EntryEvent
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(models.EntryEvent) error
}

// NewEventQueue creates a new event queue with the specified buffer size
func NewEventQueue(bufferSize int, logger *logrus.Logger) *EventQueue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &EventQueue{
		items:    make(chan models.EntryEvent, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(models.EntryEvent) error, 0),
	}
}

// Push adds an event to the queue without blocking
func (q *EventQueue) Push(event models.EntryEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- event:
		q.logger.WithField("kind", event.Kind).Debug("Pushed event to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish pushes the event and logs instead of failing. Entry writes never
// wait on live clients.
func (q *EventQueue) Publish(event models.EntryEvent) {
	if q == nil {
		return
	}
	if err := q.Push(event); err != nil {
		q.logger.WithError(err).WithField("kind", event.Kind).Warn("Dropped entry event")
	}
}

// Subscribe adds a handler function that will be called for each event
func (q *EventQueue) Subscribe(handler func(models.EntryEvent) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *EventQueue) Start() {
	go q.process()
}

func (q *EventQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case event := <-q.items:
			q.dispatch(event)
		}
	}
}

// dispatch sends the event to all subscribed handlers
func (q *EventQueue) dispatch(event models.EntryEvent) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			q.logger.WithError(err).Error("Handler failed to process event")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *EventQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	return nil
}

// Len returns the current number of queued events
func (q *EventQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *EventQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
