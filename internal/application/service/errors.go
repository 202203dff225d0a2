package service

import "errors"

// ErrInvalidSettings is returned when trigger settings fail validation
var ErrInvalidSettings = errors.New("invalid trigger settings")

// ErrInvalidDirectoryEntry is returned when a person or role grant fails validation
var ErrInvalidDirectoryEntry = errors.New("invalid directory entry")
