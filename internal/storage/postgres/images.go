package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fancai/orchestrator/internal/model"
)

// ImageStore persists model.GeneratedImage rows.
type ImageStore struct {
	c *Client
}

// NewImageStore returns an ImageStore backed by c.
func NewImageStore(c *Client) *ImageStore { return &ImageStore{c: c} }

// Create inserts a new GeneratedImage in pending status.
func (s *ImageStore) Create(ctx context.Context, img *model.GeneratedImage) error {
	var descID, chapID sql.NullString
	if img.DescriptionID != "" {
		descID = sql.NullString{String: img.DescriptionID, Valid: true}
	}
	if img.ChapterID != "" {
		chapID = sql.NullString{String: img.ChapterID, Valid: true}
	}

	_, err := s.c.Pool.Exec(ctx, `
		INSERT INTO generated_images (id, owner_id, description_id, chapter_id, service_used, status, url, prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		img.ID, img.OwnerID, descID, chapID, img.ServiceUsed, img.Status, img.URL, img.Prompt)
	if err != nil {
		return fmt.Errorf("insert generated image: %w", err)
	}
	return nil
}

// UpdateStatus transitions status. Per spec.md §3, transitions are
// monotonic except failed → pending on retry; callers are expected to
// respect that, this method does not enforce it.
func (s *ImageStore) UpdateStatus(ctx context.Context, id string, status model.ImageStatus) error {
	_, err := s.c.Pool.Exec(ctx, `UPDATE generated_images SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update image status: %w", err)
	}
	return nil
}
