package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrLedgerNotFound  = errors.New("ledger not found")
	ErrCorruptLedger   = errors.New("corrupt ledger")
	ErrInvalidUnits    = errors.New("invalid unit count")
	ErrQuotaExhausted  = errors.New("quota exhausted")
	ErrRateLimited     = errors.New("rate limited by provider")
	ErrUpstream        = errors.New("upstream provider error")
	ErrTimeout         = errors.New("upstream request timed out")
)
