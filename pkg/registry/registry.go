// Package registry tracks the liveness of log-forwarding agents.
// Agents are upserted on every ingest and never deleted; staleness is
// computed against the clock at read time.
package registry

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/anomi-sec/anomi/pkg/model"
)

// AgentSink persists agent sightings across restarts.
type AgentSink interface {
	UpsertAgent(ctx context.Context, agent model.Agent) error
	ListAgents(ctx context.Context) ([]model.Agent, error)
}

// sinkTimeout bounds the write-through so a hung backend cannot stall
// the ingest path.
const sinkTimeout = 2 * time.Second

// Registry is an agent table keyed by hostname. Reads and status
// derivation are served from memory; an optional sink mirrors
// heartbeats to durable storage. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]model.Agent
	sink   AgentSink
	now    func() time.Time
}

func New() *Registry {
	return &Registry{
		agents: make(map[string]model.Agent),
		now:    time.Now,
	}
}

// NewPersistent builds a registry that writes heartbeats through to
// sink and preloads the agents persisted by earlier runs, so known
// agents survive restarts (they resurface as stale until they report
// again).
func NewPersistent(ctx context.Context, sink AgentSink) *Registry {
	r := New()
	r.sink = sink

	agents, err := sink.ListAgents(ctx)
	if err != nil {
		log.Printf("[WARN] Could not restore agents: %v", err)
		return r
	}
	for _, a := range agents {
		if a.Hostname == "" {
			continue
		}
		r.agents[a.Hostname] = a
	}
	return r
}

// RecordHeartbeat upserts an agent sighting. Empty hostnames are
// ignored so malformed submissions cannot pollute the table. The sink
// write is best-effort: a broken backend never fails ingest.
func (r *Registry) RecordHeartbeat(hostname, ip string) {
	if hostname == "" {
		return
	}
	agent := model.Agent{
		Hostname: hostname,
		IP:       ip,
		LastSeen: r.now().UTC(),
	}

	r.mu.Lock()
	r.agents[hostname] = agent
	r.mu.Unlock()

	if r.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := r.sink.UpsertAgent(ctx, agent); err != nil {
			log.Printf("[WARN] Could not persist agent %s: %v", hostname, err)
		}
	}
}

// List returns known agents sorted by hostname, with Status derived
// from LastSeen age: online within staleness, stale past it. Agents
// silent longer than eviction are omitted from the listing but kept in
// the table, so a later heartbeat revives them with the same identity.
// eviction <= 0 disables the cutoff.
func (r *Registry) List(staleness, eviction time.Duration) []model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]model.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		age := now.Sub(a.LastSeen)
		if eviction > 0 && age > eviction {
			continue
		}
		if age > staleness {
			a.Status = model.AgentStale
		} else {
			a.Status = model.AgentOnline
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// CountActive returns how many agents reported within the window.
func (r *Registry) CountActive(window time.Duration) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	active := 0
	for _, a := range r.agents {
		if now.Sub(a.LastSeen) <= window {
			active++
		}
	}
	return active
}
