package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

// FileCaseStore keeps all cases in memory and rewrites the whole JSON file on
// every mutation. A failed write is returned to the caller but does not roll
// back the in-memory state.
type FileCaseStore struct {
	path   string
	logger *zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	cases       map[string]domain.FlaggedCase
	order       []string
	reviewIndex map[string]string
}

// OpenFileCaseStore loads dir/flagged.json, creating dir when needed.
func OpenFileCaseStore(dir string, logger *zerolog.Logger) (*FileCaseStore, error) {
	if err := os.MkdirAll(dir, caseDirPerm); err != nil {
		return nil, fmt.Errorf("create case store dir: %w", err)
	}

	s := &FileCaseStore{
		path:        filepath.Join(dir, CaseStoreFilename),
		logger:      logger,
		now:         time.Now,
		cases:       make(map[string]domain.FlaggedCase),
		reviewIndex: make(map[string]string),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info().Int("size", len(s.cases)).Str("path", s.path).Msg("case store loaded")

	return s, nil
}

func (s *FileCaseStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read case store: %w", err)
	}

	var records []domain.FlaggedCase
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode case store: %w", err)
	}

	for _, c := range records {
		if c.MessageID == "" {
			continue
		}

		if _, exists := s.cases[c.MessageID]; !exists {
			s.order = append(s.order, c.MessageID)
		}

		s.cases[c.MessageID] = c
	}

	for _, id := range s.order {
		s.indexLocked(s.cases[id])
	}

	return nil
}

// Upsert merges patch onto the stored case and persists the store.
func (s *FileCaseStore) Upsert(_ context.Context, patch domain.CasePatch) (domain.FlaggedCase, error) {
	if patch.MessageID == "" {
		return domain.FlaggedCase{}, fmt.Errorf("upsert case: %w", coreerrors.ErrInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.cases[patch.MessageID]
	oldReview := current.ReviewMessageID

	patch.Apply(&current, s.now())

	if !exists {
		s.order = append(s.order, current.MessageID)
	}

	s.cases[current.MessageID] = current

	if oldReview != "" && oldReview != current.ReviewMessageID && s.reviewIndex[oldReview] == current.MessageID {
		delete(s.reviewIndex, oldReview)
	}

	s.indexLocked(current)

	return current, s.persistLocked()
}

// indexLocked points the case's review message at it. A review message that was
// indexed for another case is detached from that case first.
func (s *FileCaseStore) indexLocked(c domain.FlaggedCase) {
	if c.ReviewMessageID == "" {
		return
	}

	if prev, ok := s.reviewIndex[c.ReviewMessageID]; ok && prev != c.MessageID {
		if other, found := s.cases[prev]; found {
			s.logger.Warn().
				Str(logKeyReviewMessageID, c.ReviewMessageID).
				Str(logKeyMessageID, prev).
				Msg("review message reassigned to another case")

			other.ReviewMessageID = ""
			other.ReviewChannelID = ""
			s.cases[prev] = other
		}
	}

	s.reviewIndex[c.ReviewMessageID] = c.MessageID
}

func (s *FileCaseStore) Get(_ context.Context, messageID string) (domain.FlaggedCase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[messageID]

	return c, ok, nil
}

func (s *FileCaseStore) FindByReviewMessage(_ context.Context, reviewMessageID string) (domain.FlaggedCase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.reviewIndex[reviewMessageID]
	if !ok {
		return domain.FlaggedCase{}, false, nil
	}

	c, ok := s.cases[id]

	return c, ok, nil
}

// List returns all cases in creation order.
func (s *FileCaseStore) List(_ context.Context) ([]domain.FlaggedCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FlaggedCase, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cases[id])
	}

	return out, nil
}

// Remove deletes a case; it reports whether the case existed.
func (s *FileCaseStore) Remove(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[messageID]
	if !ok {
		return false, nil
	}

	delete(s.cases, messageID)

	if c.ReviewMessageID != "" && s.reviewIndex[c.ReviewMessageID] == messageID {
		delete(s.reviewIndex, c.ReviewMessageID)
	}

	for i, id := range s.order {
		if id == messageID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return true, s.persistLocked()
}

// Size returns the number of stored cases.
func (s *FileCaseStore) Size(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.cases), nil
}

// persistLocked writes the store to a temp file and renames it over the original.
func (s *FileCaseStore) persistLocked() error {
	records := make([]domain.FlaggedCase, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.cases[id])
	}

	err := writeFileAtomic(s.path, records)
	if err != nil {
		observability.CaseStoreWrites.WithLabelValues(writeStatusError).Inc()
		s.logger.Error().Err(err).Str("path", s.path).Msg("failed to persist case store")

		return err
	}

	observability.CaseStoreWrites.WithLabelValues(writeStatusOK).Inc()

	return nil
}

func writeFileAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode case store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp case file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName) //nolint:errcheck // already renamed on success
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp case file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp case file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp case file: %w", err)
	}

	if err := os.Chmod(tmpName, caseFilePerm); err != nil {
		return fmt.Errorf("chmod temp case file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace case file: %w", err)
	}

	return nil
}
