package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesSyntheticStatusEcho(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("run-1", map[string]any{"status": "running"})
	defer unsubscribe()

	select {
	case ev := <-ch:
		assert.Equal(t, KindRunStatus, ev.Kind)
		assert.Equal(t, "running", ev.Payload["status"])
	case <-time.After(time.Second):
		t.Fatal("expected synthetic run_status echo")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New()
	chA, unsubA := b.Subscribe("run-1", map[string]any{"status": "running"})
	defer unsubA()
	chB, unsubB := b.Subscribe("run-1", map[string]any{"status": "running"})
	defer unsubB()

	<-chA
	<-chB

	b.Publish(Event{RunID: "run-1", Kind: KindCandidateToken, Payload: map[string]any{"delta": "hi"}})

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case ev := <-ch:
			assert.Equal(t, KindCandidateToken, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("expected candidate_token event")
		}
	}
}

func TestPublishDoesNotCrossRuns(t *testing.T) {
	b := New()
	chA, unsubA := b.Subscribe("run-1", map[string]any{"status": "running"})
	defer unsubA()
	<-chA

	b.Publish(Event{RunID: "run-2", Kind: KindRunCancelled})

	select {
	case ev := <-chA:
		t.Fatalf("unexpected event leaked across runs: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	b := New()
	_, unsubscribe := b.Subscribe("run-1", nil)
	require.Equal(t, 1, b.SubscriberCount("run-1"))

	unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount("run-1"))
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("run-1", nil)
	defer unsubscribe()
	<-ch // drain synthetic echo

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{RunID: "run-1", Kind: KindCandidateToken})
	}
	// Publish must return without blocking even once the buffer is full.
}
