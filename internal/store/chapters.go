package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/audiofolio/audiofolio-server/internal/domain"
	"github.com/audiofolio/audiofolio-server/internal/errors"
)

const chapterPrefix = "chapter:"

// GetChapter retrieves a chapter by ID.
func (s *Store) GetChapter(ctx context.Context, id string) (*domain.Chapter, error) {
	key := []byte(chapterPrefix + id)

	var chapter domain.Chapter
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chapter)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.NotFoundf("chapter %s not found", id)
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return &chapter, nil
}

// PutChapter writes a chapter record, replacing any previous one under the
// same ID.
func (s *Store) PutChapter(ctx context.Context, chapter *domain.Chapter) error {
	data, err := json.Marshal(chapter)
	if err != nil {
		return fmt.Errorf("marshal chapter: %w", err)
	}
	key := []byte(chapterPrefix + chapter.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("put chapter: %w", err)
	}
	return nil
}

// GetOrPutChapter is the analyzer cache lookup. A cached chapter whose file
// modification time matches is reused verbatim; otherwise compute runs and
// its non-nil result replaces the cached record. compute returning (nil, nil)
// means the file is unparsable and nothing is stored.
func (s *Store) GetOrPutChapter(ctx context.Context, id string, lastModified time.Time, compute func() (*domain.Chapter, error)) (*domain.Chapter, error) {
	cached, err := s.GetChapter(ctx, id)
	switch {
	case err == nil:
		if cached.FileLastModified.Equal(lastModified) {
			return cached, nil
		}
	case errors.Is(err, errors.ErrNotFound):
	default:
		return nil, err
	}

	chapter, err := compute()
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, nil
	}
	if err := s.PutChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}
