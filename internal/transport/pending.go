package transport

import (
	"fmt"
	"sort"
	"sync"
	"time"

	waBinary "go.mau.fi/whatsmeow/binary"
)

// PendingRequest is one IQ awaiting its response.
type PendingRequest struct {
	ID     string
	Tag    string
	SentAt time.Time
}

type pendingEntry struct {
	info PendingRequest
	ch   chan *waBinary.Node
}

// pendingTable stores in-flight requests by correlation id.
type pendingTable struct {
	mu    sync.RWMutex
	items map[string]pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{items: make(map[string]pendingEntry)}
}

func (p *pendingTable) add(id, tag string, at time.Time) (<-chan *waBinary.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[id]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	ch := make(chan *waBinary.Node, 1)
	p.items[id] = pendingEntry{info: PendingRequest{ID: id, Tag: tag, SentAt: at}, ch: ch}
	return ch, nil
}

// resolve hands resp to the waiter for id and reports whether one existed.
func (p *pendingTable) resolve(id string, resp *waBinary.Node) bool {
	p.mu.Lock()
	entry, ok := p.items[id]
	if ok {
		delete(p.items, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	entry.ch <- resp
	return true
}

func (p *pendingTable) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, id)
}

func (p *pendingTable) list() []PendingRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PendingRequest, 0, len(p.items))
	for _, item := range p.items {
		out = append(out, item.info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
