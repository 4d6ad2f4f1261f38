package session

import (
	"context"
	"fmt"
)

// memoryStore implements Store for tests without a Redis backend.
type memoryStore struct {
	id            string
	values        map[string]string
	destroyed     bool
	regenerations int
	saves         int

	// fieldsSetBeforeRegenerate trips if a write lands before the first
	// identity regeneration, which would defeat fixation protection.
	fieldsSetBeforeRegenerate bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		id:     "initial-session-id",
		values: make(map[string]string),
	}
}

func (s *memoryStore) ID() string {
	return s.id
}

func (s *memoryStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memoryStore) Set(key, value string) {
	if s.destroyed {
		return
	}
	if s.regenerations == 0 {
		s.fieldsSetBeforeRegenerate = true
	}
	s.values[key] = value
}

func (s *memoryStore) Unset(key string) {
	delete(s.values, key)
}

func (s *memoryStore) RegenerateID(ctx context.Context) error {
	s.regenerations++
	s.id = fmt.Sprintf("regenerated-session-id-%d", s.regenerations)
	return nil
}

func (s *memoryStore) Destroy(ctx context.Context) error {
	s.values = make(map[string]string)
	s.destroyed = true
	return nil
}

func (s *memoryStore) Save(ctx context.Context) error {
	s.saves++
	return nil
}
