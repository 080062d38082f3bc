package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"traderesonance/server/internal/models"
)

func TestNewEventQueue(t *testing.T) {
	logger := logrus.New()
	q := NewEventQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestEventQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewEventQueue(2, logger)

	event := models.EntryEvent{Kind: models.EventCreated, Entry: &models.Entry{City: "Aurora"}}
	err := q.Push(event)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	_ = q.Push(event)
	err = q.Push(event)
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(event)
	assert.Equal(t, ErrQueueClosed, err)
}

func TestEventQueue_PublishNeverBlocks(t *testing.T) {
	logger := logrus.New()
	q := NewEventQueue(1, logger)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Publish(models.EntryEvent{Kind: models.EventUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}
	assert.Equal(t, 1, q.Len())

	var nilQueue *EventQueue
	nilQueue.Publish(models.EntryEvent{Kind: models.EventUpdated})
}

func TestEventQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewEventQueue(10, logger)
	defer q.Close()

	var received []models.EntryEvent
	var mu sync.Mutex

	q.Subscribe(func(event models.EntryEvent) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		return nil
	})

	q.Start()

	assert.NoError(t, q.Push(models.EntryEvent{Kind: models.EventCreated, Entry: &models.Entry{City: "Aurora"}}))
	assert.NoError(t, q.Push(models.EntryEvent{Kind: models.EventImported, Count: 3}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "Aurora", received[0].Entry.City)
	assert.Equal(t, 3, received[1].Count)
	mu.Unlock()
}

func TestEventQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewEventQueue(10, logger)

	// Test first close
	err := q.Close()
	assert.NoError(t, err)
	assert.True(t, q.IsClosed())

	// Test second close (should be no-op)
	err = q.Close()
	assert.NoError(t, err)
}

func TestEventQueue_Dispatch(t *testing.T) {
	logger := logrus.New()
	q := NewEventQueue(10, logger)
	defer q.Close()

	var wg sync.WaitGroup
	handled := 0
	var mu sync.Mutex

	// a failing handler does not stop the others
	for i := 0; i < 3; i++ {
		wg.Add(1)
		fail := i == 0
		q.Subscribe(func(models.EntryEvent) error {
			mu.Lock()
			handled++
			mu.Unlock()
			wg.Done()
			if fail {
				return errors.New("boom")
			}
			return nil
		})
	}

	q.Start()

	err := q.Push(models.EntryEvent{Kind: models.EventDeduped, Count: 1})
	assert.NoError(t, err)

	wg.Wait()

	mu.Lock()
	assert.Equal(t, 3, handled)
	mu.Unlock()
}
