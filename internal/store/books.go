package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/audiofolio/audiofolio-server/internal/domain"
	"github.com/audiofolio/audiofolio-server/internal/errors"
)

const bookPrefix = "book:"

// GetBook retrieves a book by ID. Returns errors.ErrNotFound when absent.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.BookContent, error) {
	key := []byte(bookPrefix + id)

	var book domain.BookContent
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &book)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.NotFoundf("book %s not found", id)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// PutBook writes a book record. The integrity invariant is validated first;
// a violating record is never persisted.
func (s *Store) PutBook(ctx context.Context, book *domain.BookContent) error {
	if err := book.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	key := []byte(bookPrefix + book.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("put book: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "book written",
			slog.String("id", book.ID),
			slog.String("name", book.Name),
			slog.Int("chapters", len(book.Chapters)),
			slog.Bool("active", book.IsActive),
		)
	}
	return nil
}

// ListBooks returns all book records.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.BookContent, error) {
	var books []*domain.BookContent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var book domain.BookContent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				return err
			}
			books = append(books, &book)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// ActiveBookIDs returns the IDs of all active books.
func (s *Store) ActiveBookIDs(ctx context.Context) ([]string, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, b := range books {
		if b.IsActive {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

// SetAllInactiveExcept soft-deletes every active book whose ID is not in
// keep. Records are flipped, never removed, so progress and bookmarks
// survive a folder being unplugged.
func (s *Store) SetAllInactiveExcept(ctx context.Context, keep []string) error {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	books, err := s.ListBooks(ctx)
	if err != nil {
		return err
	}

	deactivated := 0
	for _, book := range books {
		if !book.IsActive {
			continue
		}
		if _, ok := keepSet[book.ID]; ok {
			continue
		}
		book.IsActive = false
		if err := s.PutBook(ctx, book); err != nil {
			return fmt.Errorf("deactivate book %s: %w", book.ID, err)
		}
		deactivated++
	}

	if deactivated > 0 && s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "books deactivated",
			slog.Int("count", deactivated),
		)
	}
	return nil
}
