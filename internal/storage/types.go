package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusDropped   = "dropped"
)

// DeliveryEntry records one fired occurrence and what happened to it.
type DeliveryEntry struct {
	At      time.Time `json:"at"`
	JobID   string    `json:"job_id"`
	ChatID  int64     `json:"chat_id"`
	Kind    string    `json:"kind"`
	FiredAt time.Time `json:"fired_at"`
	Status  string    `json:"status"`
	ChatOK  bool      `json:"chat_ok"`
	TopicOK bool      `json:"topic_ok"`
	Error   string    `json:"error,omitempty"`
	TookMS  int64     `json:"took_ms"`
}
