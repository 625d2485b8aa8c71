package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlink/fleetlink/pkg/types"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "retry-cache.json"))
}

func payload(key, value string) types.Document {
	doc := types.NewDocument()
	doc.Set(key, value)
	return doc
}

func lootAt(sub, faction string, at time.Time) types.LootRecord {
	return types.LootRecord{
		CapturedAt: at,
		LootData: types.LootData{
			SubmarineName: sub,
			FactionID:     faction,
			Items:         []types.LootItem{{ItemID: 1, Name: "salvage", Quantity: 2, Value: 100}},
			TotalValue:    200,
		},
	}
}

func TestAddSnapshotAssignsIdentity(t *testing.T) {
	c := testCache(t)

	rec := c.AddSnapshot(payload("account", "alpha"))

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CapturedAt.IsZero())
	assert.Equal(t, 1, c.PendingSnapshotCount())
	assert.True(t, c.HasPending())
}

func TestSnapshotCapEvictsOldestTimestamp(t *testing.T) {
	c := testCache(t)

	// Insert entries with strictly increasing capture times, then one more
	// that is older than everything else: the skewed entry itself must
	// lose, because eviction goes by minimum capturedAt, not FIFO.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	c.now = func() time.Time { return clock }

	var first types.SnapshotRecord
	for i := 0; i < MaxSnapshots; i++ {
		clock = base.Add(time.Duration(i) * time.Minute)
		rec := c.AddSnapshot(payload("seq", string(rune('a'+i))))
		if i == 0 {
			first = rec
		}
	}
	require.Equal(t, MaxSnapshots, c.PendingSnapshotCount())

	clock = base.Add(10 * time.Minute)
	c.AddSnapshot(payload("seq", "newest"))

	snaps := c.ListSnapshots()
	assert.Len(t, snaps, MaxSnapshots)
	for _, s := range snaps {
		assert.NotEqual(t, first.ID, s.ID, "oldest-timestamp entry must be evicted")
	}
}

func TestSnapshotCapEvictsSkewedEntry(t *testing.T) {
	c := testCache(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	c.now = func() time.Time { return clock }

	for i := 0; i < MaxSnapshots; i++ {
		clock = base.Add(time.Duration(i) * time.Minute)
		c.AddSnapshot(payload("seq", "normal"))
	}

	// Clock jumps backwards: the just-inserted entry is the oldest by
	// timestamp and is evicted on the next insert. Known edge case, kept
	// on purpose.
	clock = base.Add(-time.Hour)
	skewed := c.AddSnapshot(payload("seq", "skewed"))

	clock = base.Add(time.Hour)
	c.AddSnapshot(payload("seq", "after-skew"))

	for _, s := range c.ListSnapshots() {
		assert.NotEqual(t, skewed.ID, s.ID)
	}
}

func TestLootDuplicateWindow(t *testing.T) {
	c := testCache(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		rec    types.LootRecord
		stored bool
	}{
		{"original", lootAt("Voyager IV", "maelstrom", at), true},
		{"same voyage 30s later", lootAt("Voyager IV", "maelstrom", at.Add(30*time.Second)), false},
		{"same voyage 59s earlier", lootAt("Voyager IV", "maelstrom", at.Add(-59*time.Second)), false},
		{"past the window", lootAt("Voyager IV", "maelstrom", at.Add(61*time.Second)), true},
		{"different submarine", lootAt("Voyager V", "maelstrom", at), true},
		{"different faction", lootAt("Voyager IV", "adders", at.Add(time.Second)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stored, c.AddLoot(tt.rec))
		})
	}
	assert.Equal(t, 4, c.PendingLootCount())
}

func TestLootCapEvictsOldestTimestamp(t *testing.T) {
	c := testCache(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Each record needs a distinct submarine to dodge the dedup window.
	oldest := lootAt("sub-oldest", "maelstrom", base)
	require.True(t, c.AddLoot(oldest))
	for i := 1; i < MaxLoot; i++ {
		rec := lootAt("sub", "maelstrom", base.Add(time.Duration(i)*time.Hour))
		rec.SubmarineName = rec.SubmarineName + "-" + time.Duration(i).String()
		require.True(t, c.AddLoot(rec))
	}
	require.Equal(t, MaxLoot, c.PendingLootCount())

	over := lootAt("sub-over", "maelstrom", base.Add(time.Duration(MaxLoot+1)*time.Hour))
	require.True(t, c.AddLoot(over))

	assert.Equal(t, MaxLoot, c.PendingLootCount())
	for _, l := range c.ListLoot() {
		assert.NotEqual(t, oldest.SubmarineName, l.SubmarineName)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	c := testCache(t)
	rec := c.AddSnapshot(payload("account", "alpha"))

	c.Remove(rec.ID)
	assert.Equal(t, 0, c.PendingSnapshotCount())

	// second removal of the same id is a no-op, not an error
	c.Remove(rec.ID)
	c.Remove("never-existed")
	assert.Equal(t, 0, c.PendingSnapshotCount())
}

func TestRemoveLootByID(t *testing.T) {
	c := testCache(t)
	rec := lootAt("Voyager IV", "maelstrom", time.Now().UTC())
	require.True(t, c.AddLoot(rec))

	stored := c.ListLoot()
	require.Len(t, stored, 1)
	c.Remove(stored[0].ID)
	assert.False(t, c.HasPending())
}

func TestClear(t *testing.T) {
	c := testCache(t)
	c.AddSnapshot(payload("account", "alpha"))
	c.AddLoot(lootAt("Voyager IV", "maelstrom", time.Now().UTC()))

	c.Clear()

	assert.False(t, c.HasPending())
	assert.Empty(t, c.ListSnapshots())
	assert.Empty(t, c.ListLoot())
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retry-cache.json")

	c := New(path)
	snap := c.AddSnapshot(payload("account", "alpha"))
	loot := lootAt("Voyager IV", "maelstrom", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	require.True(t, c.AddLoot(loot))
	require.NoError(t, c.Close())

	reopened := New(path)
	snaps := reopened.ListSnapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, snap.ID, snaps[0].ID)
	assert.True(t, snap.CapturedAt.Equal(snaps[0].CapturedAt))
	v, ok := snaps[0].Payload.Get("account")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	loots := reopened.ListLoot()
	require.Len(t, loots, 1)
	assert.Equal(t, "Voyager IV", loots[0].SubmarineName)
	assert.Equal(t, int64(200), loots[0].TotalValue)
	require.Len(t, loots[0].Items, 1)
	assert.Equal(t, "salvage", loots[0].Items[0].Name)
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retry-cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := New(path)

	assert.False(t, c.HasPending())
	// and the cache still works after the failed load
	c.AddSnapshot(payload("account", "alpha"))
	assert.Equal(t, 1, c.PendingSnapshotCount())
}

func TestUnknownFileFieldsTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retry-cache.json")
	doc := `{"formatVersion":99,"fleetData":[{"id":"x1","capturedAt":"2026-08-01T12:00:00Z","data":{"k":"v"},"futureField":true}],"voyageLoot":[]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c := New(path)

	snaps := c.ListSnapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "x1", snaps[0].ID)
}

func TestCloseIsRedundantSafe(t *testing.T) {
	c := testCache(t)
	c.AddSnapshot(payload("account", "alpha"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
