/*
Package cache implements the durable retry queue for undelivered payloads.

The cache holds two bounded sequences: pending fleet-status snapshots
(at most 10) and pending voyage loot records (at most 500). When a cap is
exceeded the entry with the oldest capture timestamp is evicted, which under
clock skew can differ from strict insertion order; this mirrors the upload
service's historical behavior and is deliberate. Loot records are
additionally deduplicated on insert: a record matching a pending one on
submarine and faction within a one-minute capture window is rejected.

# Persistence

The backing file is a single JSON document with two arrays, fleetData and
voyageLoot. Persistence is write-behind: every mutation runs under the
cache mutex, sets a dirty flag, and triggers a save after the mutation's
critical section ends. The save itself reacquires the same mutex for the
marshal and file write, so the in-memory state and the file are protected
by one mutual-exclusion domain and a torn write cannot be observed. Save
failures are logged and leave memory authoritative; a corrupt or missing
file at startup degrades to an empty cache rather than failing
construction. Close performs an unconditional final flush.
*/
package cache
