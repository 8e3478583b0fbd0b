package db

import (
	"context"
	"sync"
	"time"
)

// Memory is a bounded in-process History used when no database is configured.
// The oldest entries are overwritten once size is reached.
type Memory struct {
	mu     sync.RWMutex
	buf    []Entry
	next   int
	full   bool
	notify func(Entry)
}

// NewMemory creates a ring buffer holding up to size entries. notify, when
// non-nil, is called after each Record.
func NewMemory(size int, notify func(Entry)) *Memory {
	if size <= 0 {
		size = 200
	}
	return &Memory{buf: make([]Entry, size), notify: notify}
}

func (m *Memory) Record(_ context.Context, e *Entry) error {
	m.mu.Lock()
	m.buf[m.next] = *e
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()

	if m.notify != nil {
		m.notify(*e)
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Entry, error) {
	uid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := 0; i < m.len(); i++ {
		if m.buf[i].ID == uid {
			e := m.buf[i]
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.len()
	kept := make([]Entry, 0, n)
	for i := n; i >= 1; i-- {
		e := m.buf[(m.next-i+len(m.buf))%len(m.buf)]
		if !e.CreatedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := int64(n - len(kept))
	if removed == 0 {
		return 0, nil
	}
	clear(m.buf)
	copy(m.buf, kept)
	m.next = len(kept) % len(m.buf)
	m.full = len(kept) == len(m.buf)
	return removed, nil
}

func (m *Memory) len() int {
	if m.full {
		return len(m.buf)
	}
	return m.next
}
