/*
Package types defines the core data structures shared across FleetLink.

It contains the connection state enumeration, the two payload kinds the
uplink delivers (fleet-status snapshots and voyage loot records), the
ordered Document type used for opaque snapshot payloads, and the read-only
Settings consumed by the connection layer.

Snapshots are identified by an opaque unique token and are never
deduplicated; loot records are deduplicated by submarine + faction within a
one-minute capture window (see LootRecord.IsDuplicateOf). Both kinds are
designed to serialize cleanly to JSON for the wire protocol and the retry
cache file.
*/
package types
