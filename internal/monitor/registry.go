package monitor

import (
	"sync"
	"time"
)

// SessionInfo describes one in-flight monitoring session.
type SessionInfo struct {
	Anchor    string    `json:"anchor"`
	ChannelID string    `json:"channel_id"`
	StartedAt time.Time `json:"started_at"`
}

// Registry tracks active sessions by anchor for status reporting.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]SessionInfo
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]SessionInfo)}
}

func (r *Registry) Add(anchor, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[anchor] = SessionInfo{
		Anchor:    anchor,
		ChannelID: channelID,
		StartedAt: time.Now(),
	}
}

func (r *Registry) Remove(anchor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, anchor)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Active returns a snapshot of all in-flight sessions.
func (r *Registry) Active() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
