/*
Package config loads the FleetLink agent configuration from a YAML file.

The file carries the server endpoint, credential, client display name, retry
cache location, logging, and the optional metrics listen address. Defaults
are applied after parsing and validation rejects configurations the agent
cannot start with. The connection core never reads the file itself; it is
handed the derived read-only Settings.
*/
package config
