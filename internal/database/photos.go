package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"photovault/internal/mediatypes"
)

// ListPhotoOptions controls a paged photo listing.
type ListPhotoOptions struct {
	// Kind filters the listing; empty means all kinds.
	Kind mediatypes.Kind
	// Page is 1-indexed.
	Page     int
	PageSize int
}

// PhotoListing is one page of a user's photos.
type PhotoListing struct {
	Photos     []Photo `json:"photos"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalItems int     `json:"totalItems"`
	TotalPages int     `json:"totalPages"`
}

// InsertPhoto records a committed photo. Kind and size are fixed here
// and never updated.
func (d *Database) InsertPhoto(ctx context.Context, photo *Photo) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, execErr := d.db.ExecContext(ctx,
		"INSERT INTO photos (user_id, filename, path, kind, size) VALUES (?, ?, ?, ?, ?)",
		photo.UserID, photo.Filename, photo.Path, string(photo.Kind), photo.Size,
	)
	if execErr != nil {
		err = execErr
		return 0, fmt.Errorf("failed to insert photo: %w", err)
	}

	id, _ := result.LastInsertId()
	return id, nil
}

// GetPhoto fetches one photo row, scoped to its owner.
func (d *Database) GetPhoto(ctx context.Context, owner, id int64) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_photo", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var photo Photo
	var kind string
	var createdAt int64

	err = d.db.QueryRowContext(ctx,
		"SELECT id, user_id, filename, path, kind, size, created_at FROM photos WHERE id = ? AND user_id = ?",
		id, owner,
	).Scan(&photo.ID, &photo.UserID, &photo.Filename, &photo.Path, &kind, &photo.Size, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	photo.Kind = mediatypes.Kind(kind)
	photo.CreatedAt = time.Unix(createdAt, 0)
	return &photo, nil
}

// ListPhotos returns one page of a user's photos, newest first.
func (d *Database) ListPhotos(ctx context.Context, owner int64, opts ListPhotoOptions) (*PhotoListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_photos", start, err) }()

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}
	if opts.PageSize > 500 {
		opts.PageSize = 500
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	countQuery := "SELECT COUNT(*) FROM photos WHERE user_id = ?"
	countArgs := []interface{}{owner}
	if opts.Kind != "" {
		countQuery += " AND kind = ?"
		countArgs = append(countArgs, string(opts.Kind))
	}

	var total int
	if err = d.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	query := "SELECT id, user_id, filename, path, kind, size, created_at FROM photos WHERE user_id = ?"
	args := []interface{}{owner}
	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(opts.Kind))
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, queryErr := d.db.QueryContext(ctx, query, args...)
	if queryErr != nil {
		err = queryErr
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	photos := make([]Photo, 0, opts.PageSize)
	for rows.Next() {
		var photo Photo
		var kind string
		var createdAt int64
		if err = rows.Scan(&photo.ID, &photo.UserID, &photo.Filename, &photo.Path, &kind, &photo.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		photo.Kind = mediatypes.Kind(kind)
		photo.CreatedAt = time.Unix(createdAt, 0)
		photos = append(photos, photo)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	totalPages := (total + opts.PageSize - 1) / opts.PageSize

	return &PhotoListing{
		Photos:     photos,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// DeletePhotos removes rows for the given ids, scoped to owner, and
// returns the removed rows so the caller can unlink their files.
func (d *Database) DeletePhotos(ctx context.Context, owner int64, ids []int64) ([]Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photos", start, err) }()

	if len(ids) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, owner)
	for _, id := range ids {
		args = append(args, id)
	}

	tx, txErr := d.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = txErr
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, queryErr := tx.QueryContext(ctx,
		"SELECT id, user_id, filename, path, kind, size, created_at FROM photos WHERE user_id = ? AND id IN ("+placeholders+")",
		args...,
	)
	if queryErr != nil {
		err = queryErr
		return nil, fmt.Errorf("select for delete failed: %w", err)
	}

	deleted, scanErr := scanPhotos(rows)
	if scanErr != nil {
		err = scanErr
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM photos WHERE user_id = ? AND id IN ("+placeholders+")",
		args...,
	); err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	return deleted, nil
}

// DeleteAllPhotos removes every photo row for owner and returns the
// removed rows for file cleanup.
func (d *Database) DeleteAllPhotos(ctx context.Context, owner int64) ([]Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_all_photos", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, txErr := d.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = txErr
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, queryErr := tx.QueryContext(ctx,
		"SELECT id, user_id, filename, path, kind, size, created_at FROM photos WHERE user_id = ?",
		owner,
	)
	if queryErr != nil {
		err = queryErr
		return nil, fmt.Errorf("select for delete failed: %w", err)
	}

	deleted, scanErr := scanPhotos(rows)
	if scanErr != nil {
		err = scanErr
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM photos WHERE user_id = ?", owner); err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	return deleted, nil
}

// CountPhotosByKind returns per-kind photo counts across all users,
// used for the stored-photos gauge.
func (d *Database) CountPhotosByKind(ctx context.Context) (map[mediatypes.Kind]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM photos GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[mediatypes.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		counts[mediatypes.Kind(kind)] = count
	}
	return counts, rows.Err()
}

func scanPhotos(rows *sql.Rows) ([]Photo, error) {
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var photo Photo
		var kind string
		var createdAt int64
		if err := rows.Scan(&photo.ID, &photo.UserID, &photo.Filename, &photo.Path, &kind, &photo.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		photo.Kind = mediatypes.Kind(kind)
		photo.CreatedAt = time.Unix(createdAt, 0)
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}
