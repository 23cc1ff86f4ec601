package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fancai/orchestrator/internal/model"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("not found")

// BookStore persists model.Book rows.
type BookStore struct {
	c *Client
}

// NewBookStore returns a BookStore backed by c.
func NewBookStore(c *Client) *BookStore { return &BookStore{c: c} }

// Create inserts a new book.
func (s *BookStore) Create(ctx context.Context, b *model.Book) error {
	_, err := s.c.Pool.Exec(ctx, `
		INSERT INTO books (id, owner_id, title, format, genre, raw_file_handle, is_parsed, is_processing, cover_blob_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.OwnerID, b.Title, b.Format, b.Genre, b.RawFileHandle, b.IsParsed, b.IsProcessing, b.CoverBlobRef)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// Get returns a book by id.
func (s *BookStore) Get(ctx context.Context, id string) (*model.Book, error) {
	row := s.c.Pool.QueryRow(ctx, `
		SELECT id, owner_id, title, format, genre, raw_file_handle, is_parsed, is_processing, cover_blob_ref, created_at, updated_at
		FROM books WHERE id = $1`, id)

	var b model.Book
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Format, &b.Genre, &b.RawFileHandle,
		&b.IsParsed, &b.IsProcessing, &b.CoverBlobRef, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// SetProcessing toggles is_processing, as the worker does on job start/finish
// (spec.md §4.3 steps 3 and 6).
func (s *BookStore) SetProcessing(ctx context.Context, id string, processing bool) error {
	_, err := s.c.Pool.Exec(ctx,
		`UPDATE books SET is_processing = $1, updated_at = now() WHERE id = $2`, processing, id)
	if err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	return nil
}

// SetParsed marks the book fully parsed (spec.md §4.3 step 6).
func (s *BookStore) SetParsed(ctx context.Context, id string, parsed bool) error {
	_, err := s.c.Pool.Exec(ctx,
		`UPDATE books SET is_parsed = $1, updated_at = now() WHERE id = $2`, parsed, id)
	if err != nil {
		return fmt.Errorf("set parsed: %w", err)
	}
	return nil
}
