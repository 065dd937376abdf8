// Package tracking records what an infant eats each day and evaluates the
// running totals against the day's predicted needs.
//
// A Store holds one Record per (user, date). Records are created by
// Initialize, which sets the predicted needs, or implicitly by the first
// AddFood. Totals only grow: entries are appended and never edited or
// removed, so the totals of a record always equal the sum of its entries.
//
// Evaluate is pure and recomputed on every read.
package tracking
