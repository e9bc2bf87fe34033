package service

import "errors"

var (
	ErrMissingField       = errors.New("missing field")
	ErrInvalidQuantity    = errors.New("shares must be a positive whole number")
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrPasswordMismatch   = errors.New("passwords don't match")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrQuoteUnavailable   = errors.New("quote unavailable")
)
