/*
Package uplink implements the submission coordinator: the policy layer
between payload producers, the connection manager, and the retry cache.

A submission always attempts the live send first; only a failed send (not
authenticated, or the transport rejected the emit) writes to the cache.
When the connection reaches Authenticated the coordinator drains the cache
oldest-first, snapshots before loot, pacing individual sends and isolating
per-entry failures so one bad entry never aborts the batch. A payload is
therefore either delivered or safely cached, never silently dropped.
*/
package uplink
