// Package history persists decoded controller values and the write audit
// log in SQLite.
//
// Readings are stored one row per value per change, with the value as JSON
// so sensors, switches, setpoints and selects share one table. Every write
// attempt, accepted or not, lands in write_audit with its source and
// outcome.
//
// The schema lives in the top-level migrations package.
package history
