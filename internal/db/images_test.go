package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetImageByBusinessIDNotFound(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT id, image_id, url").
		WithArgs("missing-image").
		WillReturnError(sql.ErrNoRows)

	d := &Database{db: mockDB}
	_, err = d.GetImageByBusinessID(context.Background(), "missing-image")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetImageByBusinessIDScansNullableColumns(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id", "image_id", "url", "width", "height", "object_count", "difficulty", "seeded_from", "created_at"}).
		AddRow(int64(1), "img-1", "https://example.com/img-1.jpg", nil, nil, nil, nil, nil, time.Now())

	mock.ExpectQuery("SELECT id, image_id, url").
		WithArgs("img-1").
		WillReturnRows(rows)

	d := &Database{db: mockDB}
	img, err := d.GetImageByBusinessID(context.Background(), "img-1")
	require.NoError(t, err)

	assert.Equal(t, "img-1", img.ImageID)
	assert.Nil(t, img.Width)
	assert.Nil(t, img.Height)
	assert.Equal(t, "", img.Difficulty)
}

func TestPickRandomImageExcludesSeenIDs(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id", "image_id", "url", "width", "height", "object_count", "difficulty", "seeded_from", "created_at"}).
		AddRow(int64(2), "img-2", "https://example.com/img-2.jpg", nil, nil, nil, nil, nil, time.Now())

	mock.ExpectQuery("SELECT id, image_id, url").
		WithArgs(pq.Array([]string{"img-1"})).
		WillReturnRows(rows)

	d := &Database{db: mockDB}
	img, err := d.PickRandomImage(context.Background(), []string{"img-1"})
	require.NoError(t, err)
	assert.Equal(t, "img-2", img.ImageID)
}

func TestPickRandomImageNotFoundWhenExhausted(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id", "image_id", "url", "width", "height", "object_count", "difficulty", "seeded_from", "created_at"})

	mock.ExpectQuery("SELECT id, image_id, url").
		WithArgs(pq.Array([]string{"img-1", "img-2"})).
		WillReturnRows(rows)

	d := &Database{db: mockDB}
	_, err = d.PickRandomImage(context.Background(), []string{"img-1", "img-2"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureAttentionCheckPropagatesImageLookupFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT id, image_id, url").
		WithArgs("unknown-image").
		WillReturnError(sql.ErrNoRows)

	d := &Database{db: mockDB}
	err = d.EnsureAttentionCheck(context.Background(), "unknown-image", "bicycle", true)
	assert.ErrorIs(t, err, ErrNotFound)
}
