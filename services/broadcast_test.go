package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpass/models"
)

func TestMemoryBroadcaster_DeliversToSubscriber(t *testing.T) {
	b := NewMemoryBroadcaster()

	events, cancel := b.Subscribe("guest1")
	defer cancel()

	b.Publish(models.AdmissionEvent{GuestID: "guest1", GuestName: "Ada Lovelace", AdmittedAt: time.Now()})

	select {
	case ev := <-events:
		assert.Equal(t, "Ada Lovelace", ev.GuestName)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestMemoryBroadcaster_OnlyMatchingGuestReceives(t *testing.T) {
	b := NewMemoryBroadcaster()

	mine, cancelMine := b.Subscribe("guest1")
	defer cancelMine()
	other, cancelOther := b.Subscribe("guest2")
	defer cancelOther()

	b.Publish(models.AdmissionEvent{GuestID: "guest1"})

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("subscriber for guest1 should receive the event")
	}

	select {
	case ev := <-other:
		t.Fatalf("subscriber for guest2 received %v", ev)
	default:
	}
}

func TestMemoryBroadcaster_CancelClosesChannel(t *testing.T) {
	b := NewMemoryBroadcaster()

	events, cancel := b.Subscribe("guest1")
	cancel()

	_, open := <-events
	assert.False(t, open)

	// Publishing after cancel must not panic or deliver.
	b.Publish(models.AdmissionEvent{GuestID: "guest1"})
}

func TestMemoryBroadcaster_CancelIsIdempotent(t *testing.T) {
	b := NewMemoryBroadcaster()

	_, cancel := b.Subscribe("guest1")
	cancel()
	cancel()
}

func TestMemoryBroadcaster_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewMemoryBroadcaster()

	_, cancel := b.Subscribe("guest1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Buffer is 8; overflow must be dropped, not block.
		for i := 0; i < 50; i++ {
			b.Publish(models.AdmissionEvent{GuestID: "guest1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestMemoryBroadcaster_ConcurrentSubscribePublish(t *testing.T) {
	b := NewMemoryBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, cancel := b.Subscribe("guest1")
			b.Publish(models.AdmissionEvent{GuestID: "guest1"})
			select {
			case <-events:
			case <-time.After(time.Second):
			}
			cancel()
		}()
	}
	wg.Wait()

	b.mu.RLock()
	defer b.mu.RUnlock()
	require.Empty(t, b.subs, "all subscriptions cleaned up")
}
