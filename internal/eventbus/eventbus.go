// Package eventbus implements the Event Bus (C5): per-run pub/sub of typed
// progress events to SSE subscribers, best-effort and unbuffered for
// history (spec §4.5).
package eventbus

import (
	"sync"
)

// Kind enumerates the event kinds of spec §4.5's table.
type Kind string

const (
	KindRunStatus            Kind = "run_status"
	KindModelStarted         Kind = "model_started"
	KindModelStreamingStart  Kind = "model_streaming_started"
	KindCandidateToken       Kind = "candidate_token"
	KindCandidateDone        Kind = "candidate_done"
	KindHTMLCandidateDone    Kind = "html_candidate_done"
	KindJudgeDone            Kind = "judge_done"
	KindModelError           Kind = "model_error"
	KindModelCancelled       Kind = "model_cancelled"
	KindRunCancelled         Kind = "run_cancelled"
)

// Event is one progress notification scoped to a single run.
type Event struct {
	RunID   string
	Kind    Kind
	Payload map[string]any
}

// subscriberBuffer is generous enough that a momentarily slow reader (an SSE
// client on a slow connection) doesn't cause publishers to block; a full
// channel just drops the event for that one subscriber, per the best-effort
// contract.
const subscriberBuffer = 64

type subscription struct {
	id int
	ch chan Event
}

// Bus is a per-run topic event bus. The zero value is not usable; construct
// with New.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	subsByRun map[string][]subscription
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subsByRun: make(map[string][]subscription)}
}

// Subscribe attaches a new subscriber to runID's topic and immediately
// enqueues a synthetic run_status echo built from statusPayload, so a
// late-joining client learns current status without waiting for the next
// real transition (spec §4.5). Call the returned func to detach.
func (b *Bus) Subscribe(runID string, statusPayload map[string]any) (<-chan Event, func()) {
	b.mu.Lock()
	b.nextID++
	sub := subscription{id: b.nextID, ch: make(chan Event, subscriberBuffer)}
	b.subsByRun[runID] = append(b.subsByRun[runID], sub)
	b.mu.Unlock()

	sub.ch <- Event{RunID: runID, Kind: KindRunStatus, Payload: statusPayload}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subsByRun[runID]
		for i, s := range subs {
			if s.id == sub.id {
				b.subsByRun[runID] = append(subs[:i], subs[i+1:]...)
				close(s.ch)
				break
			}
		}
		if len(b.subsByRun[runID]) == 0 {
			delete(b.subsByRun, runID)
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans ev out to every current subscriber of ev.RunID. A full
// subscriber channel is skipped rather than blocking the publisher — a
// write failure to one subscriber must not affect others (spec §4.5).
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subsByRun[ev.RunID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports how many subscribers a run currently has, mirroring
// the teacher bus's SubscriberCount for observability.
func (b *Bus) SubscriberCount(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subsByRun[runID])
}
