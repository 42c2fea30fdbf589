package core

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("objstore: not found")
	ErrInvalidInput = errors.New("objstore: invalid input")
	ErrCorrupt      = errors.New("objstore: corrupt data")
	ErrTooLarge     = errors.New("objstore: too large")
	ErrClosed       = errors.New("objstore: store closed")
)
