package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink/pkg/log"
	"github.com/fleetlink/fleetlink/pkg/metrics"
	"github.com/fleetlink/fleetlink/pkg/types"
)

const (
	// MaxSnapshots caps the pending fleet-status snapshots.
	MaxSnapshots = 10
	// MaxLoot caps the pending voyage loot records.
	MaxLoot = 500
)

// Cache is the disk-backed retry queue for undelivered payloads. It is
// independent of connection state: producers write into it whenever a live
// send fails, and the submission coordinator drains it once the uplink is
// authenticated again.
//
// All mutation runs under one mutex that also spans the persist step, so
// concurrent producers can never interleave a read-modify-write with a
// partially-written file. Persistence is write-behind: memory is the
// authority and the file is a best-effort mirror that converges within one
// save of any mutation.
type Cache struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	snapshots []types.SnapshotRecord
	loot      []types.LootRecord
	dirty     bool

	// lock-free size mirrors for HasPending and the count accessors
	snapCount atomic.Int64
	lootCount atomic.Int64
}

// cacheFile is the durable representation. Unknown fields in a loaded file
// are tolerated (json.Unmarshal ignores them); they are not round-tripped.
type cacheFile struct {
	FleetData  []snapshotEntry `json:"fleetData"`
	VoyageLoot []lootEntry     `json:"voyageLoot"`
}

type snapshotEntry struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"capturedAt"`
	Data       types.Document `json:"data"`
}

type lootEntry struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"capturedAt"`
	Data       types.LootData `json:"data"`
}

// New creates a cache backed by the file at path, loading any previously
// persisted entries. A missing or unreadable file is never fatal: the cache
// degrades to memory-only operation and logs the condition.
func New(path string) *Cache {
	c := &Cache{
		path:   path,
		logger: log.WithComponent("cache"),
		now:    time.Now,
	}
	c.load()
	c.publishCounts()
	return c
}

// AddSnapshot appends a snapshot payload, evicting the entry with the
// oldest capture timestamp if the cache is full. The stored record is
// returned.
func (c *Cache) AddSnapshot(payload types.Document) types.SnapshotRecord {
	rec := types.SnapshotRecord{
		ID:         uuid.NewString(),
		CapturedAt: c.now().UTC(),
		Payload:    payload,
	}

	c.mu.Lock()
	if len(c.snapshots) >= MaxSnapshots {
		evicted := c.evictOldestSnapshotLocked()
		c.logger.Warn().
			Str("evicted_id", evicted.ID).
			Time("captured_at", evicted.CapturedAt).
			Msg("snapshot cache full, dropping oldest entry")
		metrics.CacheEvictions.WithLabelValues("snapshot").Inc()
	}
	c.snapshots = append(c.snapshots, rec)
	c.dirty = true
	c.snapCount.Store(int64(len(c.snapshots)))
	c.mu.Unlock()

	c.save()
	return rec
}

// AddLoot appends a loot record unless an equivalent capture is already
// pending (same submarine and faction within one minute). Duplicates are
// rejected silently; the return value reports whether the record was
// stored. A record without an ID is assigned one.
func (c *Cache) AddLoot(rec types.LootRecord) bool {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = c.now().UTC()
	}

	c.mu.Lock()
	for i := range c.loot {
		if rec.IsDuplicateOf(&c.loot[i]) {
			c.mu.Unlock()
			c.logger.Debug().
				Str("submarine", rec.SubmarineName).
				Str("faction", rec.FactionID).
				Msg("duplicate loot capture rejected")
			metrics.LootDuplicatesRejected.Inc()
			return false
		}
	}
	if len(c.loot) >= MaxLoot {
		evicted := c.evictOldestLootLocked()
		c.logger.Warn().
			Str("evicted_id", evicted.ID).
			Time("captured_at", evicted.CapturedAt).
			Msg("loot cache full, dropping oldest entry")
		metrics.CacheEvictions.WithLabelValues("loot").Inc()
	}
	c.loot = append(c.loot, rec)
	c.dirty = true
	c.lootCount.Store(int64(len(c.loot)))
	c.mu.Unlock()

	c.save()
	return true
}

// ListSnapshots returns a point-in-time copy of the pending snapshots.
func (c *Cache) ListSnapshots() []types.SnapshotRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.SnapshotRecord, len(c.snapshots))
	copy(out, c.snapshots)
	return out
}

// ListLoot returns a point-in-time copy of the pending loot records.
func (c *Cache) ListLoot() []types.LootRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.LootRecord, len(c.loot))
	copy(out, c.loot)
	return out
}

// Remove deletes the entry with the given id from either sequence. Removal
// is idempotent: a missing id is a no-op, not an error, because a flush and
// a manual clear can race.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	removed := false
	for i := range c.snapshots {
		if c.snapshots[i].ID == id {
			c.snapshots = append(c.snapshots[:i], c.snapshots[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		for i := range c.loot {
			if c.loot[i].ID == id {
				c.loot = append(c.loot[:i], c.loot[i+1:]...)
				removed = true
				break
			}
		}
	}
	if removed {
		c.dirty = true
		c.snapCount.Store(int64(len(c.snapshots)))
		c.lootCount.Store(int64(len(c.loot)))
	}
	c.mu.Unlock()

	if removed {
		c.save()
	}
}

// Clear empties both sequences.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.snapshots = nil
	c.loot = nil
	c.dirty = true
	c.snapCount.Store(0)
	c.lootCount.Store(0)
	c.mu.Unlock()

	c.save()
}

// HasPending reports whether any entry is waiting for delivery.
func (c *Cache) HasPending() bool {
	return c.snapCount.Load() > 0 || c.lootCount.Load() > 0
}

// PendingSnapshotCount returns the number of pending snapshots.
func (c *Cache) PendingSnapshotCount() int {
	return int(c.snapCount.Load())
}

// PendingLootCount returns the number of pending loot records.
func (c *Cache) PendingLootCount() int {
	return int(c.lootCount.Load())
}

// Close performs the final flush. It writes unconditionally: the dirty flag
// may be stale under a racing mutation and a redundant write is harmless.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

// evictOldestSnapshotLocked removes and returns the snapshot with the
// minimum capture timestamp. Under clock skew this can differ from strict
// insertion order; the timestamp-oldest entry always loses.
func (c *Cache) evictOldestSnapshotLocked() types.SnapshotRecord {
	oldest := 0
	for i := 1; i < len(c.snapshots); i++ {
		if c.snapshots[i].CapturedAt.Before(c.snapshots[oldest].CapturedAt) {
			oldest = i
		}
	}
	evicted := c.snapshots[oldest]
	c.snapshots = append(c.snapshots[:oldest], c.snapshots[oldest+1:]...)
	return evicted
}

func (c *Cache) evictOldestLootLocked() types.LootRecord {
	oldest := 0
	for i := 1; i < len(c.loot); i++ {
		if c.loot[i].CapturedAt.Before(c.loot[oldest].CapturedAt) {
			oldest = i
		}
	}
	evicted := c.loot[oldest]
	c.loot = append(c.loot[:oldest], c.loot[oldest+1:]...)
	return evicted
}

// save flushes to disk if a mutation is outstanding. It reacquires the
// mutex, so callers invoke it after releasing their own critical section.
func (c *Cache) save() {
	metrics.PendingSnapshots.Set(float64(c.snapCount.Load()))
	metrics.PendingLoot.Set(float64(c.lootCount.Load()))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return
	}
	if err := c.persistLocked(); err != nil {
		// Memory stays authoritative; the dirty flag stays set so the
		// next save retries.
		c.logger.Error().Err(err).Str("path", c.path).Msg("cache save failed")
		return
	}
	c.dirty = false
}

func (c *Cache) persistLocked() error {
	file := cacheFile{
		FleetData:  make([]snapshotEntry, 0, len(c.snapshots)),
		VoyageLoot: make([]lootEntry, 0, len(c.loot)),
	}
	for _, s := range c.snapshots {
		file.FleetData = append(file.FleetData, snapshotEntry{
			ID:         s.ID,
			CapturedAt: s.CapturedAt,
			Data:       s.Payload,
		})
	}
	for _, l := range c.loot {
		file.VoyageLoot = append(file.VoyageLoot, lootEntry{
			ID:         l.ID,
			CapturedAt: l.CapturedAt,
			Data:       l.LootData,
		})
	}

	data, err := json.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// load reads the backing file if present. Deserialization failures degrade
// to an empty cache; durability is best-effort, never a startup dependency.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("path", c.path).Msg("cache file unreadable, starting empty")
		}
		return
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("cache file corrupt, starting empty")
		return
	}

	for _, e := range file.FleetData {
		c.snapshots = append(c.snapshots, types.SnapshotRecord{
			ID:         e.ID,
			CapturedAt: e.CapturedAt,
			Payload:    e.Data,
		})
	}
	for _, e := range file.VoyageLoot {
		c.loot = append(c.loot, types.LootRecord{
			ID:         e.ID,
			CapturedAt: e.CapturedAt,
			LootData:   e.Data,
		})
	}
	c.logger.Info().
		Int("snapshots", len(c.snapshots)).
		Int("loot", len(c.loot)).
		Msg("retry cache loaded")
}

func (c *Cache) publishCounts() {
	c.mu.Lock()
	c.snapCount.Store(int64(len(c.snapshots)))
	c.lootCount.Store(int64(len(c.loot)))
	snaps, loot := len(c.snapshots), len(c.loot)
	c.mu.Unlock()
	metrics.PendingSnapshots.Set(float64(snaps))
	metrics.PendingLoot.Set(float64(loot))
}
