package store

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the referenced marker, user or stats row does not exist.
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
