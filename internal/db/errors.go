package db

import "errors"

// Domain-level database error sentinels.
var (
	// Project errors
	ErrProjectNotFound = errors.New("project not found")

	// Keyword errors
	ErrKeywordNotFound   = errors.New("keyword not found")
	ErrDuplicateKeyword  = errors.New("keyword already tracked for this project")
	ErrKeywordNotClaimed = errors.New("keyword claim lost")

	// Ledger errors
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrTransactionNotFound = errors.New("transaction not found")
)
