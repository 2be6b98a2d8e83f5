package services

import (
	"encoding/json"
	"sync"

	pubnub "github.com/pubnub/go"

	"guestpass/models"
	"guestpass/monitoring"
)

// Broadcaster pushes admission events to live subscribers keyed by guest id.
// Best effort: no persistence, no replay for missed events.
type Broadcaster interface {
	// Subscribe returns a channel of admission events for one guest and a
	// cancel func that must be called when the subscriber goes away.
	Subscribe(guestID string) (<-chan models.AdmissionEvent, func())
	Publish(ev models.AdmissionEvent)
}

// MemoryBroadcaster is the single-instance implementation: a mutex-guarded
// map of guest id to subscriber channels. Swap in PubNubBroadcaster behind the
// same interface when delivery must span instances.
type MemoryBroadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.AdmissionEvent
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{
		subs: make(map[string]map[int]chan models.AdmissionEvent),
	}
}

func (b *MemoryBroadcaster) Subscribe(guestID string) (<-chan models.AdmissionEvent, func()) {
	ch := make(chan models.AdmissionEvent, 8)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[guestID] == nil {
		b.subs[guestID] = make(map[int]chan models.AdmissionEvent)
	}
	b.subs[guestID][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[guestID]; ok {
			if sub, ok := set[id]; ok {
				delete(set, id)
				close(sub)
			}
			if len(set) == 0 {
				delete(b.subs, guestID)
			}
		}
	}
	return ch, cancel
}

func (b *MemoryBroadcaster) Publish(ev models.AdmissionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.GuestID] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than block the check-in path.
			monitoring.TrackBroadcastDropped()
		}
	}
}

// PubNubBroadcaster publishes admission events on per-guest channels, the
// same guest-<id> channel convention the rest of the product uses for live
// pushes. Publish errors are ignored by design.
type PubNubBroadcaster struct {
	pn *pubnub.PubNub
}

func NewPubNubBroadcaster(pn *pubnub.PubNub) *PubNubBroadcaster {
	return &PubNubBroadcaster{pn: pn}
}

func (b *PubNubBroadcaster) Publish(ev models.AdmissionEvent) {
	b.pn.Publish().
		Channel(guestChannel(ev.GuestID)).
		Message(map[string]any{
			"type":        "admission",
			"guest_id":    ev.GuestID,
			"guest_name":  ev.GuestName,
			"table_name":  ev.TableName,
			"table_type":  ev.TableType,
			"seat_number": ev.SeatNumber,
			"admitted_at": ev.AdmittedAt,
		}).
		Execute()
}

func (b *PubNubBroadcaster) Subscribe(guestID string) (<-chan models.AdmissionEvent, func()) {
	listener := pubnub.NewListener()
	out := make(chan models.AdmissionEvent, 8)
	done := make(chan struct{})

	b.pn.AddListener(listener)
	b.pn.Subscribe().
		Channels([]string{guestChannel(guestID)}).
		Execute()

	go func() {
		defer close(out)
		for {
			select {
			case message := <-listener.Message:
				data, ok := message.Message.(map[string]any)
				if !ok {
					continue
				}
				raw, _ := json.Marshal(data)
				var ev models.AdmissionEvent
				if err := json.Unmarshal(raw, &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				default:
					monitoring.TrackBroadcastDropped()
				}
			case <-done:
				return
			}
		}
	}()

	cancel := func() {
		b.pn.Unsubscribe().Channels([]string{guestChannel(guestID)}).Execute()
		b.pn.RemoveListener(listener)
		close(done)
	}
	return out, cancel
}

func guestChannel(guestID string) string {
	return "guest-" + guestID
}
