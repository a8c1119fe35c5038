package pricecache

import "errors"

var (
	// ErrInvalidQuote marks a fetched quote that failed validation and was
	// treated as a miss for the cycle.
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrNotFound is returned by a Store when no record exists for a feed id.
	ErrNotFound = errors.New("price record not found")
)
