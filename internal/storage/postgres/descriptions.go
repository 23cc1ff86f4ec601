package postgres

import (
	"context"
	"fmt"

	"github.com/fancai/orchestrator/internal/model"
)

// DescriptionStore persists model.Description rows.
type DescriptionStore struct {
	c *Client
}

// NewDescriptionStore returns a DescriptionStore backed by c.
func NewDescriptionStore(c *Client) *DescriptionStore { return &DescriptionStore{c: c} }

// InsertBatch persists the pipeline's filtered, prioritized output for one
// chapter as a single transaction (spec.md §4.4 step 6 "batched insert,
// one transaction per chapter"). ON CONFLICT on the (chapter_id,
// position_in_chapter) unique index makes re-running the same chapter
// idempotent, satisfying the at-most-once-effect property (spec.md §8).
func (s *DescriptionStore) InsertBatch(ctx context.Context, descs []*model.Description) error {
	if len(descs) == 0 {
		return nil
	}

	tx, err := s.c.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range descs {
		_, err := tx.Exec(ctx, `
			INSERT INTO descriptions (id, chapter_id, type, content, context, confidence_score, priority_score, position_in_chapter, word_count, is_suitable_for_generation, image_generated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (chapter_id, position_in_chapter) DO UPDATE SET
				content = EXCLUDED.content,
				confidence_score = EXCLUDED.confidence_score,
				priority_score = EXCLUDED.priority_score`,
			d.ID, d.ChapterID, d.Type, d.Content, d.Context, d.ConfidenceScore, d.PriorityScore,
			d.PositionInChapter, d.WordCount, d.IsSuitableForGeneration, d.ImageGenerated)
		if err != nil {
			return fmt.Errorf("insert description at position %d: %w", d.PositionInChapter, err)
		}
	}
	return tx.Commit(ctx)
}

// ListByChapter returns all descriptions for a chapter, ordered by position.
func (s *DescriptionStore) ListByChapter(ctx context.Context, chapterID string) ([]*model.Description, error) {
	rows, err := s.c.Pool.Query(ctx, `
		SELECT id, chapter_id, type, content, context, confidence_score, priority_score, position_in_chapter, word_count, is_suitable_for_generation, image_generated, created_at
		FROM descriptions WHERE chapter_id = $1 ORDER BY position_in_chapter ASC`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list descriptions: %w", err)
	}
	defer rows.Close()

	var out []*model.Description
	for rows.Next() {
		var d model.Description
		if err := rows.Scan(&d.ID, &d.ChapterID, &d.Type, &d.Content, &d.Context, &d.ConfidenceScore,
			&d.PriorityScore, &d.PositionInChapter, &d.WordCount, &d.IsSuitableForGeneration,
			&d.ImageGenerated, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// MarkImageGenerated flags a description as having an image request emitted.
func (s *DescriptionStore) MarkImageGenerated(ctx context.Context, id string) error {
	_, err := s.c.Pool.Exec(ctx, `UPDATE descriptions SET image_generated = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark image generated: %w", err)
	}
	return nil
}
