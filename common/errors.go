package common

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrExists    = errors.New("already exists")
	ErrNotEmpty  = errors.New("directory not empty")
	ErrExhausted = errors.New("no space left")
	ErrIO        = errors.New("block unavailable")

	ErrNameTooLong = errors.New("name too long")
	ErrNotDir      = errors.New("not a directory")
	ErrIsDir       = errors.New("is a directory")
	ErrInvalid     = errors.New("invalid argument")
	ErrTooBig      = errors.New("file too large")
)
