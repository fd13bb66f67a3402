// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx stdlib driver.
//
// Session counters are only ever changed with single UPDATE statements
// guarded by the session status, so concurrent prompt completions never
// lose an increment and a terminal session cannot be reopened. Schema
// migrations are embedded and applied with goose.
package postgres
