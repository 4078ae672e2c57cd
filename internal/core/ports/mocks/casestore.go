package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
)

// CaseStore is a thread-safe in-memory implementation of ports.CaseStore.
type CaseStore struct {
	mu     sync.Mutex
	cases  map[string]domain.FlaggedCase
	order  []string
	review map[string]string

	Upserts int

	// UpsertFn allows overriding Upsert behavior.
	UpsertFn func(ctx context.Context, patch domain.CasePatch) (domain.FlaggedCase, error)
}

// NewCaseStore creates a new mock case store.
func NewCaseStore() *CaseStore {
	return &CaseStore{
		cases:  make(map[string]domain.FlaggedCase),
		review: make(map[string]string),
	}
}

func (s *CaseStore) Upsert(ctx context.Context, patch domain.CasePatch) (domain.FlaggedCase, error) {
	if s.UpsertFn != nil {
		return s.UpsertFn(ctx, patch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Upserts++

	c, exists := s.cases[patch.MessageID]
	if !exists {
		s.order = append(s.order, patch.MessageID)
	}

	if c.ReviewMessageID != "" {
		delete(s.review, c.ReviewMessageID)
	}

	patch.Apply(&c, time.Now())
	s.cases[c.MessageID] = c

	if c.ReviewMessageID != "" {
		s.review[c.ReviewMessageID] = c.MessageID
	}

	return c, nil
}

func (s *CaseStore) Get(_ context.Context, messageID string) (domain.FlaggedCase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[messageID]

	return c, ok, nil
}

func (s *CaseStore) FindByReviewMessage(_ context.Context, reviewMessageID string) (domain.FlaggedCase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.review[reviewMessageID]
	if !ok {
		return domain.FlaggedCase{}, false, nil
	}

	return s.cases[id], true, nil
}

func (s *CaseStore) List(_ context.Context) ([]domain.FlaggedCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FlaggedCase, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cases[id])
	}

	return out, nil
}

func (s *CaseStore) Remove(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[messageID]
	if !ok {
		return false, nil
	}

	delete(s.cases, messageID)
	delete(s.review, c.ReviewMessageID)

	for i, id := range s.order {
		if id == messageID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return true, nil
}

func (s *CaseStore) Size(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.cases), nil
}
