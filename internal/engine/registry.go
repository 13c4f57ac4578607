package engine

import (
	"sort"
	"sync"

	"outreach-engine/internal/domain/pipeline"
)

// entry guards one pipeline. Every mutation of p happens with mu held.
type entry struct {
	mu sync.Mutex
	p  *pipeline.Pipeline
}

type registry struct {
	mu            sync.RWMutex
	byID          map[string]*entry
	byOpportunity map[string][]string
	byTracking    map[string]string
}

func newRegistry() *registry {
	return &registry{
		byID:          map[string]*entry{},
		byOpportunity: map[string][]string{},
		byTracking:    map[string]string{},
	}
}

func (r *registry) add(p *pipeline.Pipeline) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[p.ID]; ok {
		return e
	}
	e := &entry{p: p}
	r.byID[p.ID] = e
	r.byOpportunity[p.OpportunityID] = append(r.byOpportunity[p.OpportunityID], p.ID)
	if p.Tracking.TrackingID != "" {
		r.byTracking[p.Tracking.TrackingID] = p.ID
	}
	return e
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

func (r *registry) byTrackingID(trackingID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTracking[trackingID]
	if !ok {
		return nil, false
	}
	e, ok := r.byID[id]
	return e, ok
}

// findPair returns the pipeline for an (opportunity, profile) pair.
func (r *registry) findPair(opportunityID, profileID string) (*entry, bool) {
	r.mu.RLock()
	ids := append([]string(nil), r.byOpportunity[opportunityID]...)
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.byID[id]; ok {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		match := e.p.ProfileID == profileID
		e.mu.Unlock()
		if match {
			return e, true
		}
	}
	return nil, false
}

func (r *registry) forOpportunity(opportunityID string) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.byOpportunity[opportunityID]))
	for _, id := range r.byOpportunity[opportunityID] {
		if e, ok := r.byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ids returns every pipeline id sorted for a stable sweep order.
func (r *registry) ids() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// snapshot returns clones of every pipeline.
func (r *registry) snapshot() []*pipeline.Pipeline {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.byID))
	for _, e := range r.byID {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*pipeline.Pipeline, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.p.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// stalled reports whether a pipeline was created but never got its proposal
// out, so it can be picked up again by a retry.
func stalled(s pipeline.Status) bool {
	switch s {
	case pipeline.StatusDiscovered, pipeline.StatusAnalyzing, pipeline.StatusProposalGenerated:
		return true
	}
	return false
}
