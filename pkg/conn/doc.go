/*
Package conn implements the FleetLink connection manager: the state machine
that dials the aggregation service, authenticates, detects failure, backs
off, and retries.

# States

	Disconnected -> Connecting -> Connected -> Authenticating -> Authenticated
	                    |             |              |
	                Unreachable     Fault    InvalidCredential

Exactly one state is current at any time. Authenticated is the only state
in which sends are attempted directly; everything else makes the submission
coordinator fall back to the retry cache.

# Reconnection

A dropped or failed connection schedules exactly one retry: 1s after the
first drop, 5s for attempts 1-4, then 5m from attempt 5 on. The attempt
counter resets only on reaching Authenticated. The retry timer handle is
checked and armed under one lock so concurrent disconnect notifications
cannot create duplicate timers. InvalidCredential never schedules a retry,
not even when the server drops the socket after rejecting; the operator has
to correct the credential and call Connect again.

# Authentication

Authentication is single-flight per physical connection: one authenticate
request per session, and a duplicate transport connected notification is a
no-op. Disconnect moots any in-flight attempt; a late auth_response is
discarded by checking the session identity and the pending guard before
acting on it.

Every session's callbacks are detached before the session is discarded, so
a disposed-but-still-draining read loop can never drive the state machine.
Listeners registered via the On* methods run in registration order, outside
the manager's locks.
*/
package conn
