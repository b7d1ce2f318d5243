package files

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndGet(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	stored, err := s.Upload(ctx, "analyst", PurposeExport, File{
		Name:     "observables.csv",
		MimeType: "text/csv",
		Data:     []byte("value\nfoo\n"),
	}, UploadOptions{EntityType: "stix-observable", Context: "/exports"})
	require.NoError(t, err)

	assert.Equal(t, "export/stix-observable//exports/observables.csv", stored.ID)
	assert.Equal(t, PurposeExport, stored.Purpose)
	assert.Equal(t, 10, stored.Size)
	assert.False(t, stored.UploadedAt.IsZero())

	data, ok := s.Get(stored.ID)
	require.True(t, ok)
	assert.Equal(t, []byte("value\nfoo\n"), data)
}

func TestUploadValidation(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	t.Run("invalid purpose", func(t *testing.T) {
		_, err := s.Upload(ctx, "analyst", "archive", File{Name: "f"}, UploadOptions{})
		assert.ErrorIs(t, err, ErrInvalidPurpose)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := s.Upload(ctx, "analyst", PurposeImport, File{}, UploadOptions{})
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestListByPurpose(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	_, err := s.Upload(ctx, "analyst", PurposeImport, File{Name: "a.json"}, UploadOptions{})
	require.NoError(t, err)
	_, err = s.Upload(ctx, "analyst", PurposeExport, File{Name: "b.csv"}, UploadOptions{})
	require.NoError(t, err)

	imports := s.List(PurposeImport)
	require.Len(t, imports, 1)
	assert.Equal(t, "a.json", imports[0].Name)

	assert.Empty(t, s.List("archive"))
}
