// Package sqlite implements breathing persistence over a SQLite database.
//
// A single database file backs parameters, sessions, metrics, and analytics
// so the adaptation and analytics reads observe the same visibility boundary
// as the lifecycle writes.
package sqlite
