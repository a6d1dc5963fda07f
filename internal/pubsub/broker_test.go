package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := broker.Subscribe(ctx)
	second := broker.Subscribe(ctx)

	broker.Publish("form.created")

	for _, sub := range []<-chan string{first, second} {
		select {
		case got := <-sub:
			if got != "form.created" {
				t.Fatalf("payload = %q, want %q", got, "form.created")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	t.Parallel()

	broker := NewBroker[int]()
	broker.Close()

	sub := broker.Subscribe(context.Background())
	if _, open := <-sub; open {
		t.Fatal("expected closed channel after broker close")
	}
}

func TestContextCancelRemovesSubscriber(t *testing.T) {
	t.Parallel()

	broker := NewBroker[int]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := broker.Subscribe(ctx)
	if broker.SubscriberCount() != 1 {
		t.Fatalf("subscribers = %d, want 1", broker.SubscriberCount())
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for broker.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, open := <-sub; open {
		t.Fatal("expected subscriber channel to be closed")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := broker.Subscribe(ctx)

	broker.Publish(1)
	broker.Publish(2) // Buffer full, dropped.

	if got := <-sub; got != 1 {
		t.Fatalf("first delivery = %d, want 1", got)
	}
	select {
	case got := <-sub:
		t.Fatalf("unexpected second delivery %d", got)
	case <-time.After(50 * time.Millisecond):
	}
}
