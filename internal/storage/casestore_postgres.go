package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

// PostgresCaseStore keeps one row per case with the full record in a jsonb
// column. Upserts lock the row so concurrent patches merge instead of racing.
type PostgresCaseStore struct {
	db  *DB
	now func() time.Time
}

func NewPostgresCaseStore(db *DB) *PostgresCaseStore {
	return &PostgresCaseStore{db: db, now: time.Now}
}

const (
	sqlEnsureCase   = `INSERT INTO flagged_cases (message_id) VALUES ($1) ON CONFLICT (message_id) DO NOTHING`
	sqlLockCase     = `SELECT doc FROM flagged_cases WHERE message_id = $1 FOR UPDATE`
	sqlDetachReview = `UPDATE flagged_cases SET review_message_id = NULL, doc = doc - 'reviewMessageId' - 'reviewChannelId' WHERE review_message_id = $1 AND message_id <> $2`
	sqlWriteCase    = `UPDATE flagged_cases SET guild_id = $2, status = $3, review_message_id = $4, doc = $5, created_at = $6, updated_at = $7 WHERE message_id = $1`
	sqlGetCase      = `SELECT doc FROM flagged_cases WHERE message_id = $1`
	sqlGetByReview  = `SELECT doc FROM flagged_cases WHERE review_message_id = $1`
	sqlListCases    = `SELECT doc FROM flagged_cases ORDER BY created_at, message_id`
	sqlDeleteCase   = `DELETE FROM flagged_cases WHERE message_id = $1`
	sqlCountCases   = `SELECT count(*) FROM flagged_cases`
)

func (s *PostgresCaseStore) Upsert(ctx context.Context, patch domain.CasePatch) (domain.FlaggedCase, error) {
	if patch.MessageID == "" {
		return domain.FlaggedCase{}, fmt.Errorf("upsert case: %w", coreerrors.ErrInvalidID)
	}

	var merged domain.FlaggedCase

	err := pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sqlEnsureCase, patch.MessageID); err != nil {
			return fmt.Errorf("ensure case row: %w", err)
		}

		var doc []byte
		if err := tx.QueryRow(ctx, sqlLockCase, patch.MessageID).Scan(&doc); err != nil {
			return fmt.Errorf("lock case row: %w", err)
		}

		if err := json.Unmarshal(doc, &merged); err != nil {
			return fmt.Errorf("decode case: %w", err)
		}

		patch.Apply(&merged, s.now())

		if merged.ReviewMessageID != "" {
			if _, err := tx.Exec(ctx, sqlDetachReview, merged.ReviewMessageID, merged.MessageID); err != nil {
				return fmt.Errorf("detach review message: %w", err)
			}
		}

		out, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode case: %w", err)
		}

		if _, err := tx.Exec(ctx, sqlWriteCase,
			merged.MessageID,
			merged.GuildID,
			string(merged.Status),
			nullableText(merged.ReviewMessageID),
			out,
			merged.CreatedAt,
			merged.UpdatedAt,
		); err != nil {
			return fmt.Errorf("write case: %w", err)
		}

		return nil
	})
	if err != nil {
		observability.CaseStoreWrites.WithLabelValues(writeStatusError).Inc()
		return domain.FlaggedCase{}, fmt.Errorf("upsert case %s: %w", patch.MessageID, err)
	}

	observability.CaseStoreWrites.WithLabelValues(writeStatusOK).Inc()

	return merged, nil
}

func (s *PostgresCaseStore) Get(ctx context.Context, messageID string) (domain.FlaggedCase, bool, error) {
	return s.queryOne(ctx, sqlGetCase, messageID)
}

func (s *PostgresCaseStore) FindByReviewMessage(ctx context.Context, reviewMessageID string) (domain.FlaggedCase, bool, error) {
	return s.queryOne(ctx, sqlGetByReview, reviewMessageID)
}

func (s *PostgresCaseStore) queryOne(ctx context.Context, query, arg string) (domain.FlaggedCase, bool, error) {
	var doc []byte

	err := s.db.Pool.QueryRow(ctx, query, arg).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FlaggedCase{}, false, nil
	}

	if err != nil {
		return domain.FlaggedCase{}, false, fmt.Errorf("query case: %w", err)
	}

	var c domain.FlaggedCase
	if err := json.Unmarshal(doc, &c); err != nil {
		return domain.FlaggedCase{}, false, fmt.Errorf("decode case: %w", err)
	}

	return c, true, nil
}

func (s *PostgresCaseStore) List(ctx context.Context) ([]domain.FlaggedCase, error) {
	rows, err := s.db.Pool.Query(ctx, sqlListCases)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}

	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("collect cases: %w", err)
	}

	out := make([]domain.FlaggedCase, 0, len(docs))

	for _, doc := range docs {
		var c domain.FlaggedCase
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("decode case: %w", err)
		}

		out = append(out, c)
	}

	return out, nil
}

func (s *PostgresCaseStore) Remove(ctx context.Context, messageID string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, sqlDeleteCase, messageID)
	if err != nil {
		return false, fmt.Errorf("delete case: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Size returns the number of stored cases.
func (s *PostgresCaseStore) Size(ctx context.Context) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx, sqlCountCases).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cases: %w", err)
	}

	return n, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
