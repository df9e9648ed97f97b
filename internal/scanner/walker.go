package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/audiofolio/audiofolio-server/internal/domain"
)

// audioExtensions is the fast filter applied during directory walks. Actual
// dispatch sniffs the container, this only keeps the walk from opening
// NFO files and cover images.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".mp4":  true,
	".aac":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".mka":  true,
	".mkv":  true,
	".webm": true,
}

// Walker enumerates book units under library roots and the audio files
// inside each unit.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a new walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{logger: logger}
}

// EnumerateUnits lists the candidate book units under one root, per its
// folder-type policy. An inaccessible root returns an error; a missing or
// unreadable child is logged and skipped.
func (w *Walker) EnumerateUnits(ctx context.Context, root domain.RootFolder) ([]BookUnit, error) {
	switch root.Type {
	case domain.FolderTypeSingleFile:
		return []BookUnit{{
			Path:   root.Path,
			Name:   baseNameNoExt(root.Path),
			IsFile: true,
		}}, nil

	case domain.FolderTypeSingleFolder:
		return []BookUnit{{
			Path: root.Path,
			Name: filepath.Base(root.Path),
		}}, nil

	case domain.FolderTypeRoot:
		return w.enumerateChildren(ctx, root.Path, "")

	case domain.FolderTypeAuthor:
		authorDirs, err := os.ReadDir(root.Path)
		if err != nil {
			return nil, err
		}
		var units []BookUnit
		for _, authorDir := range authorDirs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !authorDir.IsDir() || strings.HasPrefix(authorDir.Name(), ".") {
				continue
			}
			children, err := w.enumerateChildren(ctx, filepath.Join(root.Path, authorDir.Name()), authorDir.Name())
			if err != nil {
				w.logger.Error("failed to read author folder", "path", authorDir.Name(), "error", err)
				continue
			}
			units = append(units, children...)
		}
		return units, nil

	default:
		return nil, errors.New("unknown folder type " + string(root.Type))
	}
}

// enumerateChildren treats each immediate child of dir as one unit: folders
// become folder books, loose audio files become single-file books.
func (w *Walker) enumerateChildren(ctx context.Context, dir, author string) ([]BookUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var units []BookUnit
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			units = append(units, BookUnit{Path: path, Name: entry.Name(), Author: author})
			continue
		}
		if audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			units = append(units, BookUnit{
				Path:   path,
				Name:   baseNameNoExt(path),
				Author: author,
				IsFile: true,
			})
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		return naturalLess(units[i].Name, units[j].Name)
	})
	return units, nil
}

// AudioFiles lists the audio files of a unit in natural order. Folder units
// are walked recursively so disc subfolders (CD1, CD2) contribute their
// files too.
func (w *Walker) AudioFiles(ctx context.Context, unit BookUnit) ([]FileCandidate, error) {
	if unit.IsFile {
		info, err := os.Stat(unit.Path)
		if err != nil {
			return nil, err
		}
		return []FileCandidate{{
			Path:    unit.Path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Inode:   inodeOf(unit.Path),
		}}, nil
	}

	var files []FileCandidate
	seenInodes := make(map[uint64]bool)
	err := filepath.WalkDir(unit.Path, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			w.logger.Error("walk error", "path", path, "error", err)
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			w.logger.Error("failed to stat file", "path", path, "error", err)
			return nil
		}
		inode := inodeOf(path)
		if inode != 0 {
			// Hard links would turn one file into two chapters.
			if seenInodes[inode] {
				return nil
			}
			seenInodes[inode] = true
		}
		files = append(files, FileCandidate{Path: path, Size: info.Size(), ModTime: info.ModTime(), Inode: inode})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		return naturalLess(filepath.Base(files[i].Path), filepath.Base(files[j].Path))
	})
	return files, nil
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
