// Package config loads runtime configuration from multiple sources (YAML files,
// a dotenv file, environment variables, CLI flags) with precedence: CLI flags >
// environment > dotenv file > YAML config > Defaults. Load is called once at
// startup and the resulting Config value is handed to the components that
// need it; nothing in this package caches state.
package config
