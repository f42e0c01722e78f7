package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ColisBox/internal/models"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	r := New()

	require.False(t, r.Has("1234567890"))
	r.Add(&models.Package{TrackingNumber: "1234567890", Status: models.StatusUnknown})
	require.True(t, r.Has("1234567890"))
	// Поиск нормализует номер.
	require.True(t, r.Has("  1234567890 "))

	p, ok := r.Get("1234567890")
	require.True(t, ok)
	require.Equal(t, models.StatusUnknown, p.Status)

	removed, ok := r.Remove("1234567890")
	require.True(t, ok)
	require.Equal(t, "1234567890", removed.TrackingNumber)
	require.False(t, r.Has("1234567890"))

	_, ok = r.Remove("1234567890")
	require.False(t, ok)
}

func TestRegistry_ActiveExcludesArchived(t *testing.T) {
	r := New()
	r.Add(&models.Package{TrackingNumber: "A123456789", AddedAt: time.Unix(1, 0)})
	r.Add(&models.Package{TrackingNumber: "B123456789", AddedAt: time.Unix(2, 0), Archived: true})

	active := r.Active()
	require.Len(t, active, 1)
	require.Equal(t, "A123456789", active[0].TrackingNumber)

	require.Len(t, r.All(), 2)
	require.Equal(t, 2, r.Len())

	// Архивные остаются известными: почта не должна их переоткрывать.
	known := r.KnownNumbers()
	require.Contains(t, known, "B123456789")
}

func TestRegistry_LoadRecords(t *testing.T) {
	r := New()
	r.LoadRecords([]models.PackageRecord{
		{TrackingNumber: "xy123456789fr", Status: models.StatusInTransit, Source: models.SourceManual},
		{TrackingNumber: "", Status: models.StatusUnknown},
	})

	require.Equal(t, 1, r.Len())
	p, ok := r.Get("XY123456789FR")
	require.True(t, ok)
	require.Equal(t, "XY123456789FR", p.TrackingNumber)
	require.Equal(t, models.StatusInTransit, p.Status)
}

func TestRegistry_SnapshotDeterministic(t *testing.T) {
	r := New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r.Add(&models.Package{TrackingNumber: "C123456789", AddedAt: base.Add(time.Hour)})
	r.Add(&models.Package{TrackingNumber: "B123456789", AddedAt: base})
	r.Add(&models.Package{TrackingNumber: "A123456789", AddedAt: base})

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	// Сортировка по AddedAt, при равенстве — по номеру.
	require.Equal(t, "A123456789", snap[0].TrackingNumber)
	require.Equal(t, "B123456789", snap[1].TrackingNumber)
	require.Equal(t, "C123456789", snap[2].TrackingNumber)
}
