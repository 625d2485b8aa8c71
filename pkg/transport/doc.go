/*
Package transport implements the websocket session underlying the FleetLink
uplink.

The wire protocol is named-event messaging: every message in either
direction is one JSON frame {event, data}. A Session owns exactly one
physical connection and is single-use; the connection manager dials a
fresh session per connect attempt and detaches the old one's callbacks
before discarding it, so a dying read loop can never drive the state
machine of its replacement.

Outbound writes are serialized internally (gorilla/websocket permits one
concurrent writer). Inbound frames are dispatched to handlers registered by
event name; the disconnect callback fires exactly once per session.
*/
package transport
