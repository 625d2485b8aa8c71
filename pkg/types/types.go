package types

import (
	"time"
)

// ConnectionState represents the current state of the uplink connection.
// Exactly one state is current at any time; transitions happen only inside
// the connection manager.
type ConnectionState string

const (
	StateDisconnected      ConnectionState = "disconnected"
	StateConnecting        ConnectionState = "connecting"
	StateConnected         ConnectionState = "connected"
	StateAuthenticating    ConnectionState = "authenticating"
	StateAuthenticated     ConnectionState = "authenticated"
	StateInvalidCredential ConnectionState = "invalid_credential"
	StateUnreachable       ConnectionState = "unreachable"
	StateFault             ConnectionState = "fault"
)

// SnapshotRecord is one captured fleet-status payload awaiting (re)delivery.
// Identity is the ID token; snapshots are never deduplicated, only
// volume-capped by the retry cache.
type SnapshotRecord struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"capturedAt"`
	Payload    Document  `json:"data"`
}

// LootItem is a single item outcome from a completed voyage.
type LootItem struct {
	ItemID   uint32 `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Value    int64  `json:"value"` // unit value
}

// LootData carries the voyage outcome fields shared by the wire message and
// the retry cache entry.
type LootData struct {
	CharacterName string     `json:"characterName"`
	SubmarineName string     `json:"submarineName"`
	FactionID     string     `json:"factionId"`
	FactionTag    string     `json:"factionTag"`
	Sectors       []int32    `json:"sectors"`
	Items         []LootItem `json:"items"`
	TotalValue    int64      `json:"totalValue"`
}

// LootRecord is one voyage loot report awaiting (re)delivery.
type LootRecord struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"capturedAt"`
	LootData   `json:"data"`
}

// ComputeTotalValue derives the total payout from the item list.
func (d *LootData) ComputeTotalValue() int64 {
	var total int64
	for _, it := range d.Items {
		total += it.Value * int64(it.Quantity)
	}
	return total
}

// IsDuplicateOf reports whether two loot records describe the same voyage:
// same submarine and faction, captured within one minute of each other.
func (r *LootRecord) IsDuplicateOf(other *LootRecord) bool {
	if r.SubmarineName != other.SubmarineName || r.FactionID != other.FactionID {
		return false
	}
	delta := r.CapturedAt.Sub(other.CapturedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta < time.Minute
}

// Settings is the read-only configuration the uplink core consumes. It is
// supplied by the composing application; the core never persists it.
type Settings struct {
	ServerURL  string
	APIKey     string
	ClientName string
}
