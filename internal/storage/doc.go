// Package storage keeps an append-only journal of reminder deliveries.
//
// It is an audit trail: reminders themselves live in memory only and are
// never restored from the journal.
package storage
