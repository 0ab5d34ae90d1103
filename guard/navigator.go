package guard

import "sync"

// Navigator is the router the guard drives.
type Navigator interface {
	Location() string
	Navigate(path string)
}

var _ Navigator = (*History)(nil)

// History is an in-memory Navigator that keeps every visited path.
type History struct {
	mu      sync.RWMutex
	entries []string
}

func NewHistory(start string) *History {
	if start == "" {
		start = "/"
	}
	return &History{entries: []string{start}}
}

func (h *History) Location() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[len(h.entries)-1]
}

func (h *History) Navigate(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries[len(h.entries)-1] == path {
		return
	}
	h.entries = append(h.entries, path)
}

// Back returns to the previous path. It reports false at the first entry.
func (h *History) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return true
}

func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}
