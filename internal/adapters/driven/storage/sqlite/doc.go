// Package sqlite provides SQLite-backed implementations of the storage
// ports: sources, sync state, documents and chunks, raw access grants, and
// the materialised access snapshot. A single database file holds all of it;
// schema changes ship as embedded migrations.
package sqlite
