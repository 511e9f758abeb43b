// Package logx configures remindbot's structured logging.
//
// Logger is a small value-type wrapper on top of zerolog: console output is
// human-readable (short timestamp + short caller), file output is JSON.
package logx
