// Package config loads, normalizes, and validates reelpull configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELPULL_QUEUE_URL and REDIS_URL. An empty queue URL is valid and keeps the
// daemon in direct-processing mode.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
