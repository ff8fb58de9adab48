package events

import (
	"sync"
	"testing"
	"time"
)

func TestBroker_Subscribe(t *testing.T) {
	b := NewBroker()

	ch := b.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go b.Publish(Event{URL: "https://a.example", State: 200})

	select {
	case ev := <-ch:
		if ev.URL != "https://a.example" {
			t.Errorf("received URL = %v, want https://a.example", ev.URL)
		}
	case <-time.After(time.Second):
		t.Error("subscriber did not receive the event")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	b := NewBroker()
	ch1, ch2, ch3 := b.Subscribe(), b.Subscribe(), b.Subscribe()

	go b.Publish(Event{URL: "https://a.example"})

	received := 0
	timeout := time.After(time.Second)
	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("only received %d/3 events", received)
		}
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()

	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed after Unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("channel should be closed immediately")
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", b.Subscribers())
	}
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	_ = b.Subscribe() // never read

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*subscriberBuffer; i++ {
			b.Publish(Event{State: 200})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Publish() blocked on a slow subscriber")
	}
}

func TestBroker_ConcurrentAccess(t *testing.T) {
	b := NewBroker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(Event{State: 200})
			}
		}()
		go func() {
			defer wg.Done()
			ch := b.Subscribe()
			time.Sleep(10 * time.Millisecond)
			b.Unsubscribe(ch)
		}()
	}
	wg.Wait()
}
