package uplink

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink/pkg/log"
	"github.com/fleetlink/fleetlink/pkg/metrics"
	"github.com/fleetlink/fleetlink/pkg/types"
)

// Sender is the slice of the connection manager the coordinator uses.
type Sender interface {
	SendSnapshot(payload types.Document) bool
	SendLoot(rec types.LootRecord) bool
	SendHeartbeat()
	IsAuthenticated() bool
	OnAuthenticated(fn func())
}

// Store is the slice of the retry cache the coordinator uses.
type Store interface {
	AddSnapshot(payload types.Document) types.SnapshotRecord
	AddLoot(rec types.LootRecord) bool
	ListSnapshots() []types.SnapshotRecord
	ListLoot() []types.LootRecord
	Remove(id string)
	HasPending() bool
}

const (
	defaultSnapshotPace = 500 * time.Millisecond
	defaultLootPace     = 250 * time.Millisecond

	heartbeatInterval  = 30 * time.Second
	flushRetryInterval = 5 * time.Minute
)

// Coordinator glues the connection manager and the retry cache together:
// try the live send first, cache on failure, flush the cache when the
// connection authenticates. Producers call Submit* at irregular intervals
// from any goroutine.
type Coordinator struct {
	sender Sender
	store  Store
	logger zerolog.Logger

	snapshotPace time.Duration
	lootPace     time.Duration

	// flushMu admits one flush pass at a time; an overlapping trigger is
	// dropped rather than queued because the running pass already covers
	// the pending entries.
	flushMu sync.Mutex
}

// New wires a coordinator to the given sender and store and registers the
// authenticated-notification flush trigger.
func New(sender Sender, store Store) *Coordinator {
	c := &Coordinator{
		sender:       sender,
		store:        store,
		logger:       log.WithComponent("uplink"),
		snapshotPace: defaultSnapshotPace,
		lootPace:     defaultLootPace,
	}
	sender.OnAuthenticated(func() {
		go c.FlushAll(context.Background())
	})
	return c
}

// SubmitSnapshot delivers a snapshot payload immediately when possible,
// otherwise parks it in the retry cache. The common connected path touches
// neither disk nor the cache lock.
func (c *Coordinator) SubmitSnapshot(payload types.Document) {
	if c.sender.SendSnapshot(payload) {
		return
	}
	rec := c.store.AddSnapshot(payload)
	metrics.PayloadsCached.WithLabelValues("snapshot").Inc()
	c.logger.Info().Str("id", rec.ID).Msg("snapshot cached for retry")
}

// SubmitLoot delivers a loot record immediately when possible, otherwise
// parks it in the retry cache, which also suppresses duplicate captures.
// The total value is derived from the item list before delivery.
func (c *Coordinator) SubmitLoot(rec types.LootRecord) {
	rec.TotalValue = rec.ComputeTotalValue()
	if c.sender.SendLoot(rec) {
		return
	}
	if c.store.AddLoot(rec) {
		metrics.PayloadsCached.WithLabelValues("loot").Inc()
		c.logger.Info().Str("submarine", rec.SubmarineName).Msg("loot cached for retry")
	}
}

// FlushAll drains the retry cache oldest-first, snapshots before loot, with
// inter-item pacing so the reconnect burst does not hammer the server. A
// failed entry stays cached and the pass moves on to the next one; nothing
// aborts the batch. No-ops when the cache is empty, the connection is not
// authenticated, or another flush pass is already running.
func (c *Coordinator) FlushAll(ctx context.Context) {
	if !c.flushMu.TryLock() {
		return
	}
	defer c.flushMu.Unlock()

	if !c.store.HasPending() || !c.sender.IsAuthenticated() {
		return
	}
	metrics.FlushesTotal.Inc()

	snapshots := c.store.ListSnapshots()
	for i, rec := range snapshots {
		if i > 0 && !c.pace(ctx, c.snapshotPace) {
			return
		}
		if !c.sender.SendSnapshot(rec.Payload) {
			c.logger.Debug().Str("id", rec.ID).Msg("snapshot resend failed, keeping cached")
			continue
		}
		c.store.Remove(rec.ID)
	}

	loot := c.store.ListLoot()
	for i, rec := range loot {
		if i > 0 && !c.pace(ctx, c.lootPace) {
			return
		}
		if !c.sender.SendLoot(rec) {
			c.logger.Debug().Str("id", rec.ID).Msg("loot resend failed, keeping cached")
			continue
		}
		c.store.Remove(rec.ID)
	}

	c.logger.Info().
		Int("snapshots", len(snapshots)).
		Int("loot", len(loot)).
		Msg("retry cache flush pass finished")
}

// Run drives the periodic work: heartbeats while authenticated and a slow
// flush retry covering entries cached due to transient emit failures that
// did not drop the connection. Blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	flush := time.NewTicker(flushRetryInterval)
	defer flush.Stop()

	for {
		select {
		case <-heartbeat.C:
			c.sender.SendHeartbeat()
		case <-flush.C:
			c.FlushAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// pace waits the given delay between flush iterations; returns false when
// the context is cancelled.
func (c *Coordinator) pace(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
