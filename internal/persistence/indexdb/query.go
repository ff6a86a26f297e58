package indexdb

import (
	"context"
	"database/sql"
)

// Read helpers for the admin CLI. They open their own handle so a running
// server's writer is not disturbed.

type Reader struct{ db *sql.DB }

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Builds(ctx context.Context, limit int) ([]BuildRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT image_path,image_digest,palette_digest,snapshot_key,width,height,orientation,mode,unknown_colors,passes,repaired_cells,COALESCE(fixed_image,''),from_snapshot,elapsed_ms,recorded_at
		FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BuildRow
	for rows.Next() {
		var b BuildRow
		if err := rows.Scan(&b.ImagePath, &b.ImageDigest, &b.PaletteDigest, &b.SnapshotKey, &b.Width, &b.Height,
			&b.Orientation, &b.Mode, &b.UnknownColors, &b.Passes, &b.RepairedCells, &b.FixedImage,
			&b.FromSnapshot, &b.ElapsedMs, &b.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UnknownColors returns the most recent report for imagePath, or for the most
// recently reported image when imagePath is empty. Rows keep report order.
func (r *Reader) UnknownColors(ctx context.Context, imagePath string) ([]UnknownColorRow, error) {
	var recordedAt string
	q := `SELECT image_path, recorded_at FROM unknown_colors ORDER BY recorded_at DESC LIMIT 1`
	args := []any{}
	if imagePath != "" {
		q = `SELECT image_path, recorded_at FROM unknown_colors WHERE image_path=? ORDER BY recorded_at DESC LIMIT 1`
		args = append(args, imagePath)
	}
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&imagePath, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT image_path,color,count,x,y,recorded_at FROM unknown_colors
		WHERE image_path=? AND recorded_at=? ORDER BY count ASC, y ASC, x ASC`, imagePath, recordedAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnknownColorRow
	for rows.Next() {
		var u UnknownColorRow
		if err := rows.Scan(&u.ImagePath, &u.Color, &u.Count, &u.X, &u.Y, &u.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Reader) Failures(ctx context.Context, limit int) ([]FailureRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT kind,path,error,recorded_at FROM failures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FailureRow
	for rows.Next() {
		var f FailureRow
		if err := rows.Scan(&f.Kind, &f.Path, &f.Error, &f.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
