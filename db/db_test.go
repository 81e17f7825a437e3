package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newZone(name string, pin int, minutes int) model.Zone {
	return model.Zone{
		Name:        name,
		Pin:         pin,
		RunDuration: time.Duration(minutes) * time.Minute,
		Enabled:     true,
		AutoOff:     true,
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sprinkler.db")
	conn, err := Open(path, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enabled, err := GetSystemEnabled(context.Background(), conn)
	require.NoError(t, err)
	assert.True(t, enabled, "system starts enabled")
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, SetSystemEnabled(ctx, conn, false))
	require.NoError(t, ApplyMigrations(ctx, conn))

	enabled, err := GetSystemEnabled(ctx, conn)
	require.NoError(t, err)
	assert.False(t, enabled, "re-applying the schema keeps the stored flag")
}

func TestCreateZoneAssignsIDAndOrder(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	a, err := CreateZone(ctx, conn, newZone("Front lawn", 17, 10))
	require.NoError(t, err)
	b, err := CreateZone(ctx, conn, newZone("Back lawn", 27, 15))
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 0, a.SystemOrder)
	assert.Equal(t, 1, b.SystemOrder)

	got, err := GetZoneByID(ctx, conn, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, 15*time.Minute, got.RunDuration)
}

func TestCreateZoneRejectsDuplicatePin(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	_, err := CreateZone(ctx, conn, newZone("A", 17, 10))
	require.NoError(t, err)
	_, err = CreateZone(ctx, conn, newZone("B", 17, 10))
	assert.ErrorIs(t, err, zone.ErrInvalidZone)
}

func TestGetZoneNotFound(t *testing.T) {
	conn := setupTestDB(t)
	_, err := GetZoneByID(context.Background(), conn, 42)
	assert.ErrorIs(t, err, zone.ErrNotFound)
}

func TestUpdateAndDeleteZone(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	z, err := CreateZone(ctx, conn, newZone("Garden", 22, 5))
	require.NoError(t, err)

	z.Name = "Vegetable garden"
	z.RunDuration = 20 * time.Minute
	z.AutoOff = false
	require.NoError(t, UpdateZone(ctx, conn, z))

	got, err := GetZoneByID(ctx, conn, z.ID)
	require.NoError(t, err)
	assert.Equal(t, z, got)

	require.NoError(t, DeleteZone(ctx, conn, z.ID))
	assert.ErrorIs(t, DeleteZone(ctx, conn, z.ID), zone.ErrNotFound)
	assert.ErrorIs(t, UpdateZone(ctx, conn, z), zone.ErrNotFound)
}

func TestGetAllZonesOrdering(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	for i, pin := range []int{5, 6, 13} {
		_, err := CreateZone(ctx, conn, newZone(string(rune('A'+i)), pin, 1))
		require.NoError(t, err)
	}
	require.NoError(t, ReorderZones(ctx, conn, []int{2, 1, 1}))

	zones, err := GetAllZones(ctx, conn)
	require.NoError(t, err)
	require.Len(t, zones, 3)
	assert.Equal(t, []string{"B", "C", "A"}, []string{zones[0].Name, zones[1].Name, zones[2].Name}, "ties broken by id")
}

func TestReorderZones(t *testing.T) {
	tests := []struct {
		name    string
		order   []int
		wantErr error
		want    []string
	}{
		{name: "reverse", order: []int{3, 2, 1}, want: []string{"C", "B", "A"}},
		{name: "identity", order: []int{0, 1, 2}, want: []string{"A", "B", "C"}},
		{name: "too short", order: []int{1, 2}, wantErr: zone.ErrLengthMismatch, want: []string{"A", "B", "C"}},
		{name: "too long", order: []int{1, 2, 3, 4}, wantErr: zone.ErrLengthMismatch, want: []string{"A", "B", "C"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := setupTestDB(t)
			ctx := context.Background()
			for i, name := range []string{"A", "B", "C"} {
				_, err := CreateZone(ctx, conn, newZone(name, 10+i, 1))
				require.NoError(t, err)
			}

			err := ReorderZones(ctx, conn, tc.order)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			zones, err := GetAllZones(ctx, conn)
			require.NoError(t, err)
			var names []string
			for _, z := range zones {
				names = append(names, z.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}

func TestReorderEmptyTable(t *testing.T) {
	conn := setupTestDB(t)
	assert.NoError(t, ReorderZones(context.Background(), conn, nil))
	assert.ErrorIs(t, ReorderZones(context.Background(), conn, []int{1}), zone.ErrLengthMismatch)
}

func TestSystemEnabledRoundTrip(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, SetSystemEnabled(ctx, conn, false))
	enabled, err := GetSystemEnabled(ctx, conn)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, SetSystemEnabled(ctx, conn, true))
	enabled, err = GetSystemEnabled(ctx, conn)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestSeedZones(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	seed := []model.Zone{newZone("One", 4, 10), newZone("Two", 5, 12)}
	n, err := SeedZones(ctx, conn, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = SeedZones(ctx, conn, seed)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a populated table is a no-op")

	count, err := CountZones(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	zones, err := GetAllZones(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, zones[0].SystemOrder)
	assert.Equal(t, 1, zones[1].SystemOrder)
}

func TestSeedZonesRollsBackOnConflict(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	_, err := SeedZones(ctx, conn, []model.Zone{newZone("One", 4, 10), newZone("Dup", 4, 12)})
	assert.ErrorIs(t, err, zone.ErrInvalidZone)

	count, err := CountZones(ctx, conn)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStoreImplementsZoneStore(t *testing.T) {
	var _ zone.Store = NewStore(setupTestDB(t))
}
