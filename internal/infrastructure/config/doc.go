// Package config loads service configuration.
//
// Values are layered: Default(), then an optional YAML or TOML file named by
// the ARTWORK_CONFIG environment variable, then individual environment
// variables (PORT, LOG_LEVEL, ARTWORK_MIN_SIZE, FETCH_ALLOWED_HOSTS, ...).
// Each nested section also accepts its prefixed form, e.g. SERVER_PORT.
package config
