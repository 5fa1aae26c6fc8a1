package model

import "errors"

var (
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientTarget  = errors.New("insufficient target")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientSupply  = errors.New("insufficient supply")
	ErrInvalidClaim        = errors.New("invalid claim")
	ErrOverflow            = errors.New("arithmetic overflow")
	ErrNotFound            = errors.New("not found")
)
