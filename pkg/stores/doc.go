// Package stores provides the SQLite-backed resolution history.
//
// Each resolve pass is recorded as a resolution with its selections, the
// operations of the resulting plan, and an audit trail of lifecycle events.
// The schema is managed with embedded golang-migrate migrations.
package stores
