package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ColisBox/internal/models"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"))

	records, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, records)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colisbox.json")
	s := New(path)
	ctx := context.Background()

	updated := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	in := []models.PackageRecord{
		{
			TrackingNumber: "XY123456789FR",
			Carrier:        models.CarrierChronopost,
			Status:         models.StatusInTransit,
			Events: []models.EventRecord{
				{Timestamp: updated, Description: "En transit", Location: "Lyon"},
			},
			AddedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			LastUpdated: &updated,
			Source:      models.SourceManual,
		},
		{
			TrackingNumber: "1234567890",
			Carrier:        models.CarrierDHL,
			Status:         models.StatusUnknown,
			AddedAt:        time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
			Source:         models.SourceEmail,
			Archived:       true,
		},
	}

	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, in, out)

	// Временных файлов после записи не остаётся.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "colisbox.json"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []models.PackageRecord{{TrackingNumber: "A123456789"}}))
	require.NoError(t, s.Save(ctx, nil))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colisbox.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(path).Load(context.Background())
	require.Error(t, err)
}
