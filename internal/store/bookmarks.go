package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/audiofolio/audiofolio-server/internal/domain"
	"github.com/audiofolio/audiofolio-server/internal/errors"
)

const (
	bookmarkPrefix       = "bookmark:"
	bookmarkByBookPrefix = "idx:bookmarks:book:"
)

func bookmarkIndexKey(bookID, bookmarkID string) []byte {
	return []byte(bookmarkByBookPrefix + bookID + ":" + bookmarkID)
}

// GetBookmark retrieves a bookmark by ID.
func (s *Store) GetBookmark(ctx context.Context, id string) (*domain.Bookmark, error) {
	key := []byte(bookmarkPrefix + id)

	var bm domain.Bookmark
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &bm)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.NotFoundf("bookmark %s not found", id)
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	return &bm, nil
}

// PutBookmark writes a bookmark and its book index entry atomically.
func (s *Store) PutBookmark(ctx context.Context, bm *domain.Bookmark) error {
	data, err := json.Marshal(bm)
	if err != nil {
		return fmt.Errorf("marshal bookmark: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(bookmarkPrefix+bm.ID), data); err != nil {
			return err
		}
		return txn.Set(bookmarkIndexKey(bm.BookID, bm.ID), []byte(bm.ID))
	})
	if err != nil {
		return fmt.Errorf("put bookmark: %w", err)
	}
	return nil
}

// DeleteBookmark removes a bookmark and its index entry.
func (s *Store) DeleteBookmark(ctx context.Context, id string) error {
	bm, err := s.GetBookmark(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(bookmarkPrefix + id)); err != nil {
			return err
		}
		return txn.Delete(bookmarkIndexKey(bm.BookID, id))
	})
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// BookmarksForBook returns all bookmarks of one book.
func (s *Store) BookmarksForBook(ctx context.Context, bookID string) ([]*domain.Bookmark, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookmarkByBookPrefix + bookID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}

	bookmarks := make([]*domain.Bookmark, 0, len(ids))
	for _, id := range ids {
		bm, err := s.GetBookmark(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		bookmarks = append(bookmarks, bm)
	}
	return bookmarks, nil
}

// DeleteBookmarksForChapters removes the bookmarks of a book that refer to
// chapters no longer in the book. Called during rescans after a chapter file
// vanishes.
func (s *Store) DeleteBookmarksForChapters(ctx context.Context, bookID string, gone map[string]struct{}) error {
	bookmarks, err := s.BookmarksForBook(ctx, bookID)
	if err != nil {
		return err
	}
	for _, bm := range bookmarks {
		if _, ok := gone[bm.ChapterID]; !ok {
			continue
		}
		if err := s.DeleteBookmark(ctx, bm.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
			return err
		}
	}
	return nil
}
