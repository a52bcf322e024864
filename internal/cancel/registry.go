// Package cancel implements the Cancellation Registry (C4): hierarchical
// cancel tokens keyed by run id and by (run id, model id).
package cancel

import (
	"context"
	"strings"
	"sync"
)

// Registry holds the in-process cancel tokens for in-flight runs. The zero
// value is not usable; construct with New.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]context.CancelFunc
	ctxs   map[string]context.Context
	actors map[string]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		tokens: make(map[string]context.CancelFunc),
		ctxs:   make(map[string]context.Context),
		actors: make(map[string]string),
	}
}

// modelKey builds the composite key for a (run, model) token.
func modelKey(runID, modelID string) string {
	return runID + "/" + modelID
}

// RegisterRun creates and registers a run-level cancel token derived from
// parent, returning the context workers should observe.
func (r *Registry) RegisterRun(parent context.Context, runID string) context.Context {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxs[runID] = ctx
	r.tokens[runID] = cancel
	return ctx
}

// RegisterModel creates and registers a (run,model)-level cancel token
// derived from the run's own context (or parent if the run isn't
// registered), returning the context a model worker should observe.
func (r *Registry) RegisterModel(parent context.Context, runID, modelID string) context.Context {
	r.mu.RLock()
	runCtx, ok := r.ctxs[runID]
	r.mu.RUnlock()
	if ok {
		parent = runCtx
	}

	ctx, cancel := context.WithCancel(parent)
	key := modelKey(runID, modelID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxs[key] = ctx
	r.tokens[key] = cancel
	return ctx
}

// CancelRun triggers the run's token directly and every model-level token
// whose composite key is scoped under this run id (spec §4.4), recording
// actor as who requested the cancellation so the eventual terminal
// transition can tag cancelled_by (spec §3). Triggering a parent context via
// context.WithCancel already propagates to every child context derived from
// it, so retriggering model tokens here is belt-and-suspenders against
// workers that registered before the run token existed.
func (r *Registry) CancelRun(runID, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actors[runID] = actor

	if cancel, ok := r.tokens[runID]; ok {
		cancel()
	}

	prefix := runID + "/"
	for key, cancel := range r.tokens {
		if strings.HasPrefix(key, prefix) {
			cancel()
		}
	}
}

// Actor returns who requested runID's cancellation, or "" if CancelRun was
// never called for it (e.g. the run reached a terminal status on its own).
func (r *Registry) Actor(runID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actors[runID]
}

// CancelModel triggers only the (run,model) token, leaving sibling workers
// untouched.
func (r *Registry) CancelModel(runID, modelID string) {
	key := modelKey(runID, modelID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.tokens[key]; ok {
		cancel()
	}
}

// IsCancelled reports whether ctx has been cancelled, for call sites that
// want a non-blocking check instead of a select on ctx.Done().
func IsCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Cleanup removes every token registered for a run — the run-level entry
// and every (run,model) entry — once the run reaches a terminal status
// (spec §4.4). It does not cancel them; callers must cancel before cleanup
// if that's the intent.
func (r *Registry) Cleanup(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, runID)
	delete(r.ctxs, runID)
	delete(r.actors, runID)

	prefix := runID + "/"
	for key := range r.tokens {
		if strings.HasPrefix(key, prefix) {
			delete(r.tokens, key)
			delete(r.ctxs, key)
		}
	}
}
