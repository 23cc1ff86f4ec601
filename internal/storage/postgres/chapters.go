package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fancai/orchestrator/internal/model"
)

// ChapterStore persists model.Chapter rows.
type ChapterStore struct {
	c *Client
}

// NewChapterStore returns a ChapterStore backed by c.
func NewChapterStore(c *Client) *ChapterStore { return &ChapterStore{c: c} }

// CreateBatch inserts chapters emitted by a format parser in one
// transaction, so a book never ends up with a partial chapter set.
func (s *ChapterStore) CreateBatch(ctx context.Context, chapters []*model.Chapter) error {
	tx, err := s.c.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ch := range chapters {
		_, err := tx.Exec(ctx, `
			INSERT INTO chapters (id, book_id, chapter_number, title, content, word_count, is_service_page)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ch.ID, ch.BookID, ch.ChapterNumber, ch.Title, ch.Content, ch.WordCount, ch.IsServicePage)
		if err != nil {
			return fmt.Errorf("insert chapter %d: %w", ch.ChapterNumber, err)
		}
	}
	return tx.Commit(ctx)
}

// ListUnparsed returns chapters of bookID not yet description-parsed,
// ordered ascending by chapter_number, per spec.md §5's ordering
// guarantee ("chapters are processed in ascending chapter_number").
func (s *ChapterStore) ListUnparsed(ctx context.Context, bookID string) ([]*model.Chapter, error) {
	rows, err := s.c.Pool.Query(ctx, `
		SELECT id, book_id, chapter_number, title, content, word_count, is_description_parsed, descriptions_found, is_service_page, created_at, updated_at
		FROM chapters
		WHERE book_id = $1 AND is_description_parsed = FALSE
		ORDER BY chapter_number ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list unparsed chapters: %w", err)
	}
	defer rows.Close()

	var out []*model.Chapter
	for rows.Next() {
		var ch model.Chapter
		if err := rows.Scan(&ch.ID, &ch.BookID, &ch.ChapterNumber, &ch.Title, &ch.Content,
			&ch.WordCount, &ch.IsDescriptionParsed, &ch.DescriptionsFound, &ch.IsServicePage,
			&ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &ch)
	}
	return out, rows.Err()
}

// CountByBook returns bookID's total chapter count, used by
// internal/jobs.Scheduler to route a dispatched job to the
// heavy/normal/light pool via RouteQueueClass.
func (s *ChapterStore) CountByBook(ctx context.Context, bookID string) (int, error) {
	var n int
	err := s.c.Pool.QueryRow(ctx, `SELECT count(*) FROM chapters WHERE book_id = $1`, bookID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chapters: %w", err)
	}
	return n, nil
}

// Get returns a single chapter by id.
func (s *ChapterStore) Get(ctx context.Context, id string) (*model.Chapter, error) {
	row := s.c.Pool.QueryRow(ctx, `
		SELECT id, book_id, chapter_number, title, content, word_count, is_description_parsed, descriptions_found, is_service_page, created_at, updated_at
		FROM chapters WHERE id = $1`, id)

	var ch model.Chapter
	if err := row.Scan(&ch.ID, &ch.BookID, &ch.ChapterNumber, &ch.Title, &ch.Content,
		&ch.WordCount, &ch.IsDescriptionParsed, &ch.DescriptionsFound, &ch.IsServicePage,
		&ch.CreatedAt, &ch.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return &ch, nil
}

// MarkParsed sets is_description_parsed and descriptions_found.
// Re-running this on an already-parsed chapter with the same count is a
// no-op at the data level, which is what gives the pipeline its
// at-most-once-effect property (spec.md §8) when combined with
// idempotent description inserts.
func (s *ChapterStore) MarkParsed(ctx context.Context, id string, descriptionsFound int) error {
	_, err := s.c.Pool.Exec(ctx, `
		UPDATE chapters SET is_description_parsed = TRUE, descriptions_found = $1, updated_at = now()
		WHERE id = $2`, descriptionsFound, id)
	if err != nil {
		return fmt.Errorf("mark chapter parsed: %w", err)
	}
	return nil
}
