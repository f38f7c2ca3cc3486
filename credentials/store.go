package credentials

import (
	"errors"
)

// ErrNotFound is returned by Read when no credential has been saved.
var ErrNotFound = errors.New("no credential stored")

// Store holds the single process-wide API secret. Write-mostly: the settings
// surface is the only writer, controllers read at submission time.
type Store interface {
	Save(secret string) error
	Read() (string, error)
	Clear() error
	Exists() bool
}
