// Copyright 2024-2026 Aiku AI

package relay

import (
	"slices"
	"strings"
	"sync"
)

// QueueEntry is one channel message waiting for its send slot.
type QueueEntry struct {
	Channel string
	Text    string
}

// Queue is the FIFO of outbound relay messages. Entries are never
// reordered or deduplicated.
type Queue struct {
	mu      sync.Mutex
	entries []QueueEntry
}

// Push appends an entry.
func (q *Queue) Push(entry QueueEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	n := len(q.entries)
	q.mu.Unlock()
	queueDepth.Set(float64(n))
}

// Peek returns the head entry without removing it.
func (q *Queue) Peek() (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	return q.entries[0], true
}

// Pop removes and returns the head entry.
func (q *Queue) Pop() (QueueEntry, bool) {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return QueueEntry{}, false
	}
	entry := q.entries[0]
	q.entries[0] = QueueEntry{}
	q.entries = q.entries[1:]
	n := len(q.entries)
	q.mu.Unlock()
	queueDepth.Set(float64(n))
	return entry, true
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear discards all pending entries and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.entries)
	q.entries = nil
	q.mu.Unlock()
	queueDepth.Set(0)
	return n
}

// ChannelSet is the set of channels joined on both endpoints. Names compare
// case-insensitively and keep the spelling they were first added with.
type ChannelSet struct {
	mu    sync.RWMutex
	names []string
}

// NewChannelSet builds a set from names, skipping blanks and duplicates.
func NewChannelSet(names ...string) *ChannelSet {
	cs := &ChannelSet{}
	for _, name := range names {
		cs.Add(name)
	}
	return cs
}

func (cs *ChannelSet) index(name string) int {
	return slices.IndexFunc(cs.names, func(n string) bool {
		return strings.EqualFold(n, name)
	})
}

// Add inserts name. It reports false if name is blank or already present.
func (cs *ChannelSet) Add(name string) bool {
	if name == "" {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.index(name) >= 0 {
		return false
	}
	cs.names = append(cs.names, name)
	return true
}

// Remove deletes name and reports whether it was present.
func (cs *ChannelSet) Remove(name string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	i := cs.index(name)
	if i < 0 {
		return false
	}
	cs.names = slices.Delete(cs.names, i, i+1)
	return true
}

// Contains reports whether name is in the set.
func (cs *ChannelSet) Contains(name string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.index(name) >= 0
}

// List returns the channels in insertion order.
func (cs *ChannelSet) List() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return slices.Clone(cs.names)
}

// Len returns the number of channels.
func (cs *ChannelSet) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.names)
}
