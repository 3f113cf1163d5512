package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocsUpdated([]string{"readme"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: docs.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"ids":["readme"]`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) (tree, other int, bodies []string) {
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			bodies = append(bodies, s)
			if strings.Contains(s, "event: tree.updated") {
				tree++
			} else {
				other++
			}
		default:
			return tree, other, bodies
		}
	}
}

func TestPublishNoteEvent_TreeThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	parent := "p1"
	// First structural event triggers tree.updated.
	b.PublishNoteEvent(NoteEvent{Type: EventNoteCreated, ID: "a", ParentID: &parent})
	// Second one immediately after is throttled.
	b.PublishNoteEvent(NoteEvent{Type: EventNoteMoved, ID: "b"})

	time.Sleep(50 * time.Millisecond)
	treeCount, noteCount, bodies := drain(ch)

	if noteCount != 2 {
		t.Errorf("note events = %d, want 2", noteCount)
	}
	if treeCount != 1 {
		t.Errorf("tree events = %d, want 1 (throttled)", treeCount)
	}
	if !strings.Contains(bodies[0], `"parent_id":"p1"`) {
		t.Errorf("missing parent in %q", bodies[0])
	}
}

func TestPublishNoteEvent_ContentEditSkipsTree(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent(NoteEvent{Type: EventNoteUpdated, ID: "a"})

	time.Sleep(50 * time.Millisecond)
	treeCount, noteCount, _ := drain(ch)
	if noteCount != 1 || treeCount != 0 {
		t.Errorf("got %d note / %d tree events, want 1 / 0", noteCount, treeCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishNoteEvent(NoteEvent{Type: EventNoteUpdated, ID: "x"})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventDocsUpdated, Data: map[string]string{"id": "x"}})
	b.PublishNoteEvent(NoteEvent{Type: EventNotesReset})
}
