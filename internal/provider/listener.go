package provider

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	pubnub "github.com/pubnub/go/v7"
)

// Notification is a payment status push received over the provider's PubNub
// channel. It feeds the same confirmation path as the webhook; duplicates
// between the two intakes are resolved by the idempotent confirm.
type Notification struct {
	SessionRef string `json:"session_ref"`
	Status     string `json:"status"`
	ChargeRef  string `json:"charge_ref"`
}

// Listener subscribes to the provider's notification channel.
type Listener struct {
	pn      *pubnub.PubNub
	lis     *pubnub.Listener
	channel string
	ch      chan Notification
}

func NewListener(subKey, uuid, channel string) *Listener {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(uuid))
	cfg.SubscribeKey = subKey

	return &Listener{
		pn:      pubnub.NewPubNub(cfg),
		lis:     pubnub.NewListener(),
		channel: channel,
		ch:      make(chan Notification, 16),
	}
}

func (l *Listener) Notifications() <-chan Notification {
	return l.ch
}

// Run blocks consuming the subscription until ctx is cancelled. Malformed
// messages are logged and skipped; the channel stays up.
func (l *Listener) Run(ctx context.Context) {
	l.pn.AddListener(l.lis)
	l.pn.Subscribe().Channels([]string{l.channel}).Execute()
	defer l.pn.Unsubscribe().Channels([]string{l.channel}).Execute()

	for {
		select {
		case st := <-l.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to provider notifications")
			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to provider notifications")
			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from provider notifications")
			default:
			}

		case message := <-l.lis.Message:
			n, err := decodeNotification(message.Message)
			if err != nil {
				log.Printf("provider notification decode failed: %v", err)
				continue
			}
			select {
			case l.ch <- n:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			log.Println("provider notification listener stopped")
			return
		}
	}
}

func decodeNotification(message any) (Notification, error) {
	var n Notification
	switch m := message.(type) {
	case string:
		dec := json.NewDecoder(strings.NewReader(m))
		if err := dec.Decode(&n); err != nil {
			return n, err
		}
	default:
		raw, err := json.Marshal(m)
		if err != nil {
			return n, err
		}
		if err := json.Unmarshal(raw, &n); err != nil {
			return n, err
		}
	}
	return n, nil
}
