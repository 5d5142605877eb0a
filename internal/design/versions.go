package design

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrVersionNotFound is returned when a requested version number does not
// exist for the conversation.
var ErrVersionNotFound = errors.New("design version not found")

// VersionStore persists immutable snapshots of a conversation's design.
// Version numbers are dense and start at 1 in save order.
type VersionStore interface {
	// Save stores d as the next version and returns its number.
	Save(ctx context.Context, conversationID string, d *Design) (int, error)
	// List returns all saved versions in ascending order.
	List(ctx context.Context, conversationID string) ([]VersionInfo, error)
	// Load returns the snapshot for the given version number.
	Load(ctx context.Context, conversationID string, version int) (*Design, error)
}

// MemoryVersionStore is the default in-process VersionStore.
type MemoryVersionStore struct {
	mu       sync.RWMutex
	versions map[string][]Version
	now      func() time.Time
}

func NewMemoryVersionStore() *MemoryVersionStore {
	return &MemoryVersionStore{
		versions: make(map[string][]Version),
		now:      time.Now,
	}
}

func (s *MemoryVersionStore) Save(_ context.Context, conversationID string, d *Design) (int, error) {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.versions[conversationID]) + 1
	s.versions[conversationID] = append(s.versions[conversationID], Version{
		Design:  *d.Clone(),
		Version: n,
		SavedAt: s.now(),
	})
	return n, nil
}

func (s *MemoryVersionStore) List(_ context.Context, conversationID string) ([]VersionInfo, error) {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[conversationID]
	out := make([]VersionInfo, 0, len(vs))
	for _, v := range vs {
		out = append(out, VersionInfo{
			Version: v.Version,
			SavedAt: v.SavedAt,
			Name:    v.Design.Name,
		})
	}
	return out, nil
}

func (s *MemoryVersionStore) Load(_ context.Context, conversationID string, version int) (*Design, error) {
	conversationID = strings.TrimSpace(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[conversationID] {
		if v.Version == version {
			return v.Design.Clone(), nil
		}
	}
	return nil, ErrVersionNotFound
}
