// Package config loads, normalizes, and validates confops configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, applies a local .env file, and honours
// environment fallbacks such as PRETALX_API_TOKEN and OPENAI_API_KEY. The
// Config type centralizes every knob the CLI needs and derives the working
// layout (records, queues, downloads) from the configured directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
