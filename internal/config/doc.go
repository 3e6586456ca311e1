// Package config loads, normalizes, and validates the TOML configuration
// and converts it into the engine's parameter types. Validation is eager:
// a configuration that loads cleanly cannot fail provider selection or
// scheme checks later in a job.
package config
