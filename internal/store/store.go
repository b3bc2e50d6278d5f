package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"photovault/internal/database"
	"photovault/internal/logging"
	"photovault/internal/mediatypes"
	"photovault/internal/metrics"
)

// ErrFileMissing indicates a photo row referenced a file that is no
// longer on disk. The row is still removed; the condition is surfaced,
// never silently repaired.
var ErrFileMissing = errors.New("stored file missing on disk")

// sniffLen is how many leading bytes are given to content sniffing when
// the filename extension is not recognized.
const sniffLen = 512

// Store is the authoritative local media store: one metadata row plus
// one file on disk per committed photo, scoped per owner. Rows are
// immutable once committed.
type Store struct {
	db  *database.Database
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(db *database.Database, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo store dir: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) ownerDir(owner int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("user_%d", owner))
}

// Commit writes the photo bytes to disk and records the metadata row.
// The media kind is derived here, once, from the filename extension
// (with a content sniff fallback for unknown extensions) and is never
// recomputed afterward. On any failure nothing is left behind: the row
// and the file are created together or not at all.
func (s *Store) Commit(ctx context.Context, owner int64, filename string, r io.Reader) (*database.Photo, error) {
	filename = filepath.Base(filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid filename")
	}

	dir := s.ownerDir(owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create owner dir: %w", err)
	}

	// Sniff the head so kind detection can fall back to content when
	// the extension is unrecognized.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	kind := deriveKind(filename, head)

	path, err := uniquePath(dir, filename)
	if err != nil {
		return nil, err
	}

	size, err := writeFile(path, head, r)
	if err != nil {
		return nil, err
	}

	photo := &database.Photo{
		UserID:   owner,
		Filename: filename,
		Path:     path,
		Kind:     kind,
		Size:     size,
	}

	id, err := s.db.InsertPhoto(ctx, photo)
	if err != nil {
		// Undo the file write so no orphan remains.
		if rmErr := os.Remove(path); rmErr != nil {
			logging.Error("failed to remove file after insert failure: %v", rmErr)
		}
		return nil, err
	}
	photo.ID = id

	metrics.StoreBytesWritten.Add(float64(size))
	logging.Debug("committed photo %d for owner %d (%s, %s, %d bytes)", id, owner, filename, kind, size)
	return photo, nil
}

// List returns one page of an owner's photos.
func (s *Store) List(ctx context.Context, owner int64, opts database.ListPhotoOptions) (*database.PhotoListing, error) {
	return s.db.ListPhotos(ctx, owner, opts)
}

// Get fetches one photo row, scoped to its owner.
func (s *Store) Get(ctx context.Context, owner, id int64) (*database.Photo, error) {
	return s.db.GetPhoto(ctx, owner, id)
}

// Open returns a photo row together with its opened file.
func (s *Store) Open(ctx context.Context, owner, id int64) (*database.Photo, *os.File, error) {
	photo, err := s.db.GetPhoto(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(photo.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return photo, nil, fmt.Errorf("%w: %s", ErrFileMissing, photo.Filename)
		}
		return photo, nil, err
	}
	return photo, f, nil
}

// Delete removes the given photos: metadata rows and files together.
// The returned count is the number of rows removed. A file already
// missing on disk is reported via ErrFileMissing but does not resurrect
// its row.
func (s *Store) Delete(ctx context.Context, owner int64, ids []int64) (int, error) {
	deleted, err := s.db.DeletePhotos(ctx, owner, ids)
	if err != nil {
		return 0, err
	}
	return len(deleted), s.removeFiles(deleted)
}

// DeleteAll removes every photo belonging to owner.
func (s *Store) DeleteAll(ctx context.Context, owner int64) (int, error) {
	deleted, err := s.db.DeleteAllPhotos(ctx, owner)
	if err != nil {
		return 0, err
	}
	return len(deleted), s.removeFiles(deleted)
}

// DeleteAccount removes the owner's account, cascading all photo rows,
// and wipes the owner's file tree.
func (s *Store) DeleteAccount(ctx context.Context, owner int64) error {
	if err := s.db.DeleteUser(ctx, owner); err != nil {
		return err
	}
	if err := os.RemoveAll(s.ownerDir(owner)); err != nil {
		return fmt.Errorf("failed to remove owner files: %w", err)
	}
	return nil
}

// removeFiles unlinks every photo in the batch. The rows are already
// gone, so one bad file must not strand the rest on disk; failures are
// collected and reported together after the whole batch is attempted.
func (s *Store) removeFiles(photos []database.Photo) error {
	var missing []string
	var failed []error
	for _, photo := range photos {
		if err := os.Remove(photo.Path); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, photo.Filename)
				continue
			}
			failed = append(failed, fmt.Errorf("failed to remove %s: %w", photo.Filename, err))
		}
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrFileMissing, strings.Join(missing, ", "))
	}
	return nil
}

// deriveKind fixes a photo's kind from its filename, sniffing content
// only when the extension is unknown.
func deriveKind(filename string, head []byte) mediatypes.Kind {
	kind := mediatypes.KindForFilename(filename)
	if kind != mediatypes.KindOther {
		return kind
	}

	if len(head) > 0 {
		mime := mimetype.Detect(head)
		switch {
		case strings.HasPrefix(mime.String(), "image/"):
			return mediatypes.KindImage
		case strings.HasPrefix(mime.String(), "video/"):
			return mediatypes.KindVideo
		}
	}
	return mediatypes.KindOther
}

// uniquePath picks a collision-free destination inside dir for filename
// by suffixing a counter before the extension.
func uniquePath(dir, filename string) (string, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	for i := 0; i < 1000; i++ {
		name := filename
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("could not find free name for %s", filename)
}

// writeFile writes head followed by the rest of r to path, returning
// the byte count. The partial file is removed on failure.
func writeFile(path string, head []byte, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			logging.Error("failed to remove partial file %s: %v", path, rmErr)
		}
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return size, nil
}
