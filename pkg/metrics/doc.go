/*
Package metrics exposes Prometheus instrumentation for the FleetLink agent.

Metrics cover the connection state machine (one-hot state gauge, reconnect
attempts, authentication outcomes), payload delivery (delivered vs cached by
kind), and the retry cache (pending sizes, capacity evictions, duplicate
rejections, flush passes). Components update the package-level collectors
directly; the run command serves them via Handler when a metrics address is
configured.
*/
package metrics
