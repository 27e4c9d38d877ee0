package lsp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	itext "github.com/kpumuk/line-weaver/internal/text"
)

// Snapshot is an immutable document state.
type Snapshot struct {
	URI     string
	Version int32
	Text    []byte
	Lines   *itext.LineIndex
}

func newSnapshot(uri string, version int32, src []byte) *Snapshot {
	return &Snapshot{URI: uri, Version: version, Text: src, Lines: itext.NewLineIndex(src)}
}

// Bytes returns a copy of the snapshot source bytes.
func (s *Snapshot) Bytes() []byte {
	if s == nil {
		return nil
	}
	return slices.Clone(s.Text)
}

// SnapshotStore stores versioned documents.
type SnapshotStore struct {
	mu   sync.RWMutex
	docs map[string]*Snapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{docs: make(map[string]*Snapshot)}
}

// Open stores a document snapshot, replacing any previous one for uri.
func (s *SnapshotStore) Open(ctx context.Context, uri string, version int32, src []byte) (*Snapshot, error) {
	if s == nil {
		return nil, errors.New("nil SnapshotStore")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := newSnapshot(uri, version, slices.Clone(src))
	s.mu.Lock()
	s.docs[uri] = snap
	s.mu.Unlock()
	return snap, nil
}

// Change applies incremental LSP changes and replaces the snapshot.
func (s *SnapshotStore) Change(ctx context.Context, uri string, version int32, changes []TextDocumentContentChangeEvent) (*Snapshot, error) {
	if s == nil {
		return nil, errors.New("nil SnapshotStore")
	}
	s.mu.RLock()
	cur, ok := s.docs[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDocumentNotOpen
	}
	if version <= cur.Version {
		return nil, ErrStaleVersion
	}

	nextSrc, err := applyContentChanges(cur.Text, changes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next := newSnapshot(uri, version, nextSrc)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Recheck: another change or close may have landed after the read lock was released.
	latest, ok := s.docs[uri]
	if !ok {
		return nil, ErrDocumentNotOpen
	}
	if latest != cur {
		return nil, ErrStaleVersion
	}
	s.docs[uri] = next
	return next, nil
}

// Close removes a tracked document snapshot.
func (s *SnapshotStore) Close(uri string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Snapshot returns the current snapshot for uri.
func (s *SnapshotStore) Snapshot(uri string) (*Snapshot, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.docs[uri]
	return snap, ok
}

// SnapshotAtVersion returns the current snapshot if the version matches exactly.
func (s *SnapshotStore) SnapshotAtVersion(uri string, version int32) (*Snapshot, error) {
	snap, ok := s.Snapshot(uri)
	if !ok {
		return nil, ErrDocumentNotOpen
	}
	if snap.Version != version {
		return nil, ErrStaleVersion
	}
	return snap, nil
}

func applyContentChanges(src []byte, changes []TextDocumentContentChangeEvent) ([]byte, error) {
	if len(changes) == 0 {
		return slices.Clone(src), nil
	}
	cur := slices.Clone(src)
	for _, ch := range changes {
		if ch.Range == nil {
			cur = []byte(ch.Text)
			continue
		}
		span, err := rangeToSpan(itext.NewLineIndex(cur), *ch.Range)
		if err != nil {
			return nil, fmt.Errorf("change range: %w", err)
		}
		cur, err = itext.ApplyEdits(cur, []itext.ByteEdit{{
			Span:    span,
			NewText: []byte(ch.Text),
		}})
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}
