package session

import (
	"context"
	"sync"
	"time"
)

type batch struct {
	prompt    string
	filenames []string
	createdAt time.Time
	claimed   bool
}

// MemoryStore 是进程内实现，重启即清空
type MemoryStore struct {
	mu      sync.Mutex
	batches map[string]*batch
	files   map[string]string // filename -> batchID
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]*batch),
		files:   make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) PutBatch(_ context.Context, batchID, prompt string, filenames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := append([]string(nil), filenames...)
	s.batches[batchID] = &batch{prompt: prompt, filenames: names, createdAt: s.now()}
	for _, name := range names {
		s.files[name] = batchID
	}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, filename string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID, b, err := s.findLocked(filename)
	if err != nil {
		return nil, err
	}
	return b.entry(filename, batchID), nil
}

func (s *MemoryStore) Claim(_ context.Context, filename string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID, b, err := s.findLocked(filename)
	if err != nil {
		return nil, err
	}
	if b.claimed {
		return nil, ErrClaimed
	}
	b.claimed = true
	return b.entry(filename, batchID), nil
}

func (s *MemoryStore) Release(_ context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.batches[batchID]; ok {
		b.claimed = false
	}
	return nil
}

func (s *MemoryStore) TakeBatch(_ context.Context, filename string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID, ok := s.files[filename]
	if !ok {
		return nil, ErrNotFound
	}
	return s.removeLocked(batchID), nil
}

func (s *MemoryStore) Sweep(_ context.Context, olderThan time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for batchID, b := range s.batches {
		if b.createdAt.Before(olderThan) {
			removed = append(removed, s.removeLocked(batchID)...)
		}
	}
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = make(map[string]*batch)
	s.files = make(map[string]string)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches), nil
}

func (s *MemoryStore) findLocked(filename string) (string, *batch, error) {
	batchID, ok := s.files[filename]
	if !ok {
		return "", nil, ErrNotFound
	}
	b, ok := s.batches[batchID]
	if !ok {
		return "", nil, ErrNotFound
	}
	return batchID, b, nil
}

func (b *batch) entry(filename, batchID string) *Entry {
	return &Entry{
		Filename:  filename,
		BatchID:   batchID,
		Prompt:    b.prompt,
		Siblings:  append([]string(nil), b.filenames...),
		CreatedAt: b.createdAt,
	}
}

func (s *MemoryStore) removeLocked(batchID string) []string {
	b, ok := s.batches[batchID]
	if !ok {
		return nil
	}
	delete(s.batches, batchID)
	for _, name := range b.filenames {
		delete(s.files, name)
	}
	return append([]string(nil), b.filenames...)
}

var _ Store = (*MemoryStore)(nil)
