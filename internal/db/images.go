package db

import (
	"context"
	"database/sql"
	"math/rand"

	"github.com/lib/pq"
)

// GetImageByBusinessID looks up a catalog row by its business id.
func (d *Database) GetImageByBusinessID(ctx context.Context, imageID string) (*Image, error) {
	img := &Image{}
	var difficulty, seededFrom sql.NullString
	var width, height, objectCount sql.NullInt64

	err := d.db.QueryRowContext(ctx, `
		SELECT id, image_id, url, width, height, object_count, difficulty, seeded_from, created_at
		FROM images WHERE image_id = $1`, imageID,
	).Scan(&img.ID, &img.ImageID, &img.URL, &width, &height, &objectCount, &difficulty, &seededFrom, &img.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if width.Valid {
		w := int(width.Int64)
		img.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		img.Height = &h
	}
	if objectCount.Valid {
		o := int(objectCount.Int64)
		img.ObjectCount = &o
	}
	img.Difficulty = difficulty.String
	img.SeededFrom = seededFrom.String
	return img, nil
}

// EnsureImage inserts a catalog row for imageID if one doesn't already
// exist, the "unknown-image policy" of spec.md §4.6: a submission
// referencing an unseen image id grows the catalog rather than failing.
// Always returns the row's surrogate id, whether it was just inserted or
// already present.
func (d *Database) EnsureImage(ctx context.Context, imageID, url string) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO images (image_id, url) VALUES ($1, $2)
		ON CONFLICT (image_id) DO UPDATE SET image_id = EXCLUDED.image_id
		RETURNING id`,
		imageID, url,
	).Scan(&id)
	return id, err
}

// PickRandomImage returns one catalog row chosen uniformly at random,
// excluding the given business ids (the session's already-seen set).
// Exclusion happens in SQL so the random draw and the filter are atomic
// with respect to catalog growth between calls.
func (d *Database) PickRandomImage(ctx context.Context, excludeImageIDs []string) (*Image, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, image_id, url, width, height, object_count, difficulty, seeded_from, created_at
		FROM images
		WHERE NOT (image_id = ANY($1))`,
		pq.Array(excludeImageIDsArray(excludeImageIDs)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*Image
	for rows.Next() {
		img := &Image{}
		var difficulty, seededFrom sql.NullString
		var width, height, objectCount sql.NullInt64
		if err := rows.Scan(&img.ID, &img.ImageID, &img.URL, &width, &height, &objectCount, &difficulty, &seededFrom, &img.CreatedAt); err != nil {
			return nil, err
		}
		if width.Valid {
			w := int(width.Int64)
			img.Width = &w
		}
		if height.Valid {
			h := int(height.Int64)
			img.Height = &h
		}
		if objectCount.Valid {
			o := int(objectCount.Int64)
			img.ObjectCount = &o
		}
		img.Difficulty = difficulty.String
		img.SeededFrom = seededFrom.String
		candidates = append(candidates, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	return candidates[rand.Intn(len(candidates))], nil
}

func excludeImageIDsArray(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// EnsureAttentionCheck inserts or updates the active attention-check binding
// for a catalog image, used by the optional seed manifest (SPEC_FULL.md
// §4.13) to declare attention-check images up front. The seed is the only
// caller; submissions never create attention_checks rows.
func (d *Database) EnsureAttentionCheck(ctx context.Context, imageID, expectedKeyword string, strict bool) error {
	img, err := d.GetImageByBusinessID(ctx, imageID)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO attention_checks (image_fk, expected_keyword, strict, active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (image_fk) DO UPDATE SET
			expected_keyword = EXCLUDED.expected_keyword,
			strict = EXCLUDED.strict,
			active = true`,
		img.ID, expectedKeyword, strict,
	)
	return err
}

// ActiveAttentionCheck returns the attention-check row for an image, if one
// is active.
func (d *Database) ActiveAttentionCheck(ctx context.Context, imageFK int64) (*AttentionCheck, error) {
	ac := &AttentionCheck{ImageFK: imageFK}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, expected_keyword, strict, active FROM attention_checks
		WHERE image_fk = $1 AND active = true`, imageFK,
	).Scan(&ac.ID, &ac.ExpectedKeyword, &ac.Strict, &ac.Active)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ac, nil
}
