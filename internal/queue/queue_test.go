package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg, err := NewMessage("study_record.saved", map[string]string{"record_id": "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatal(err)
	}

	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-ch:
		var body map[string]string
		if err := got.Decode(&body); err != nil {
			t.Fatal(err)
		}
		if got.Type != "study_record.saved" || body["record_id"] != "r1" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := NewInMemory(1).Consume(ctx)
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	_ = q.Publish(context.Background(), Message{Type: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, Message{Type: "b"}); err == nil {
		t.Fatal("publish to a full queue should fail once ctx expires")
	}
}
