package llm

import (
	"context"
	"sync"
	"time"
)

const statusTTL = 10 * time.Minute

// Status is the last known reachability of the model endpoint.
type Status struct {
	Configured bool      `json:"configured"`
	Available  bool      `json:"available"`
	Model      string    `json:"model,omitempty"`
	Latency    string    `json:"latency,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checkedAt,omitempty"`
}

// Prober caches a connectivity check against the endpoint so status
// requests do not spend a completion each time.
type Prober struct {
	client *Client
	now    func() time.Time

	mu        sync.RWMutex
	cached    Status
	lastProbe time.Time
}

func NewProber(c *Client) *Prober {
	return &Prober{
		client: c,
		now:    time.Now,
		cached: Status{Configured: c.Configured(), Model: c.Model()},
	}
}

// Configured reports whether a token is set, without probing.
func (p *Prober) Configured() bool {
	return p.client.Configured()
}

// Check returns the cached status, probing the endpoint when the cache is
// stale or force is set.
func (p *Prober) Check(ctx context.Context, force bool) Status {
	if !p.client.Configured() {
		return Status{Configured: false}
	}

	p.mu.RLock()
	if !force && !p.lastProbe.IsZero() && p.now().Sub(p.lastProbe) < statusTTL {
		s := p.cached
		p.mu.RUnlock()
		return s
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another caller may have probed while we waited for the lock.
	if !force && !p.lastProbe.IsZero() && p.now().Sub(p.lastProbe) < statusTTL {
		return p.cached
	}

	start := p.now()
	_, err := p.client.Complete(ctx, []Message{{Role: RoleUser, Content: "Reply with OK."}})
	s := Status{
		Configured: true,
		Available:  err == nil,
		Model:      p.client.Model(),
		Latency:    p.now().Sub(start).Round(time.Millisecond).String(),
		CheckedAt:  start,
	}
	if err != nil {
		s.Error = err.Error()
	}

	p.cached = s
	p.lastProbe = start
	return s
}
