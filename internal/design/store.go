package design

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultName   = "Untitled Design"
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Store keeps one live Design per conversation. All accessors copy on the
// way in and out so callers never alias the live document.
type Store struct {
	mu      sync.RWMutex
	designs map[string]*Design
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		designs: make(map[string]*Design),
		now:     time.Now,
	}
}

// NewDesign builds a fresh default document.
func NewDesign(now time.Time) *Design {
	return &Design{
		ID:         fmt.Sprintf("design-%d", now.UnixMilli()),
		Name:       DefaultName,
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Operations: []Operation{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Get returns a clone of the live design, or nil if none exists.
func (s *Store) Get(conversationID string) *Design {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.designs[conversationID].Clone()
}

// GetOrCreate returns a clone of the live design, creating the default
// document on first touch.
func (s *Store) GetOrCreate(conversationID string) *Design {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[conversationID]
	if !ok {
		d = NewDesign(s.now())
		s.designs[conversationID] = d
	}
	return d.Clone()
}

// Replace swaps in the given document as the live design, refreshing its
// UpdatedAt. Returns a clone of what was stored.
func (s *Store) Replace(conversationID string, d *Design) *Design {
	conversationID = strings.TrimSpace(conversationID)
	stored := d.Clone()
	stored.UpdatedAt = s.now()
	s.mu.Lock()
	s.designs[conversationID] = stored
	s.mu.Unlock()
	return stored.Clone()
}

// Append adds an operation to the live design, creating the default document
// first if needed. Returns a clone of the updated design.
func (s *Store) Append(conversationID string, op Operation) *Design {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[conversationID]
	if !ok {
		d = NewDesign(s.now())
		s.designs[conversationID] = d
	}
	d.Operations = append(d.Operations, *op.Clone())
	d.UpdatedAt = s.now()
	return d.Clone()
}

// Remove drops the operation with the given id. The second return reports
// whether anything was removed; the design clone is returned either way.
func (s *Store) Remove(conversationID, operationID string) (*Design, bool) {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[conversationID]
	if !ok {
		return nil, false
	}
	kept := d.Operations[:0]
	for _, op := range d.Operations {
		if op.ID != operationID {
			kept = append(kept, op)
		}
	}
	removed := len(kept) != len(d.Operations)
	d.Operations = kept
	if removed {
		d.UpdatedAt = s.now()
	}
	return d.Clone(), removed
}

// Update applies cmd to the operation with the given id. The second return
// reports whether the operation was found.
func (s *Store) Update(conversationID, operationID string, cmd UpdateCommand) (*Design, bool) {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[conversationID]
	if !ok {
		return nil, false
	}
	for i := range d.Operations {
		if d.Operations[i].ID == operationID {
			cmd.apply(&d.Operations[i])
			d.UpdatedAt = s.now()
			return d.Clone(), true
		}
	}
	return d.Clone(), false
}
