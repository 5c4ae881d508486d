// Package airtable is a small client for the Airtable REST API scoped to a
// single table. It covers the record endpoints (create, get, update, delete,
// list with offset pagination) and models cell values as an ordered, closed
// set of JSON variants so that payloads round-trip without a fixed schema.
package airtable
