package ledger

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]Run
	chunks map[string]map[int]Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]Run),
		chunks: make(map[string]map[int]Chunk),
	}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) SaveChunks(_ context.Context, runID string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byIndex, ok := s.chunks[runID]
	if !ok {
		byIndex = make(map[int]Chunk)
		s.chunks[runID] = byIndex
	}
	for _, c := range chunks {
		c.RunID = runID
		byIndex[c.Index] = c
	}
	return nil
}

func (s *MemoryStore) ListChunks(_ context.Context, runID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chunk, 0, len(s.chunks[runID]))
	for _, c := range s.chunks[runID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
