package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrSessionNotFound = goerr.New("session not found")
	ErrSessionExists   = goerr.New("session already exists")
	ErrExportNotFound  = goerr.New("export not found")
	ErrInvalidArgument = goerr.New("invalid argument")
)

// IsNotFound reports whether err indicates a missing session or export.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrExportNotFound)
}

// IsInvalidArgument reports whether err stems from a rejected request value.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsConflict reports whether err indicates a duplicate session.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionExists)
}
