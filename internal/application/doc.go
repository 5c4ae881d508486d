// Package application provides application initialization and dependency wiring.
// It builds the Airtable client, record service, metrics registry, routers and
// HTTP server from a config.Config, keeping the main package focused on CLI
// parsing and orchestration.
package application
