package normalizer

import (
	"sync"
	"testing"
	"time"
)

func testSnapshot(chatID int64, messageID int) *Snapshot {
	return &Snapshot{
		Key:      MessageKey{ChatID: chatID, MessageID: messageID},
		SenderID: 42,
		Text:     "hello",
	}
}

func TestSchedulerFiresAfterDelay(t *testing.T) {
	s := NewDeferredScheduler()
	defer s.Stop()

	fired := make(chan MessageKey, 1)
	s.Schedule(testSnapshot(-100, 1), 10*time.Millisecond, func(snap *Snapshot) {
		fired <- snap.Key
	})

	select {
	case key := <-fired:
		if key.MessageID != 1 {
			t.Fatalf("unexpected key fired: %+v", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}

	if s.Len() != 0 {
		t.Fatalf("expected empty pending table, got %d entries", s.Len())
	}
}

func TestSchedulerCancelPreventsFire(t *testing.T) {
	s := NewDeferredScheduler()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	snap := testSnapshot(-100, 2)
	s.Schedule(snap, 50*time.Millisecond, func(*Snapshot) {
		fired <- struct{}{}
	})

	if !s.Cancel(snap.Key) {
		t.Fatalf("expected cancel to remove pending entry")
	}
	if s.Cancel(snap.Key) {
		t.Fatalf("expected second cancel to be a no-op")
	}

	select {
	case <-fired:
		t.Fatalf("cancelled entry must not fire")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSchedulerFirstWinsOnDuplicateKey(t *testing.T) {
	s := NewDeferredScheduler()
	defer s.Stop()

	var mu sync.Mutex
	var texts []string

	first := testSnapshot(-100, 3)
	first.Text = "first"
	second := testSnapshot(-100, 3)
	second.Text = "second"

	fire := func(snap *Snapshot) {
		mu.Lock()
		texts = append(texts, snap.Text)
		mu.Unlock()
	}

	s.Schedule(first, 10*time.Millisecond, fire)
	s.Schedule(second, 10*time.Millisecond, fire)

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 1 || texts[0] != "first" {
		t.Fatalf("expected exactly the first snapshot to fire, got %v", texts)
	}
}

func TestSchedulerStopDropsPending(t *testing.T) {
	s := NewDeferredScheduler()

	fired := make(chan struct{}, 1)
	s.Schedule(testSnapshot(-100, 4), time.Hour, func(*Snapshot) {
		fired <- struct{}{}
	})

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}

	select {
	case <-fired:
		t.Fatalf("entry must not fire after Stop")
	default:
	}
}
