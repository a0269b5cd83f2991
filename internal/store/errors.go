package store

import "errors"

var (
	ErrLedgerClosed = errors.New("ledger is closed")
	ErrInvalidEntry = errors.New("ledger entry must be a single non-empty line")
)
