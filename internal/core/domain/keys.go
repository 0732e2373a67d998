package domain

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidKey    = errors.New("invalid key")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidSchema = errors.New("invalid schema")
	ErrEmptyDataset  = errors.New("dataset has no records")
	ErrNotFound      = errors.New("not found")
	ErrSuperseded    = errors.New("validation run superseded")
)

var (
	keyPattern  = regexp.MustCompile(`^[a-zA-Z0-9._:/-]+$`)
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ValidateKey checks tenant ids, run ids and session tokens.
func ValidateKey(key string) error {
	if key == "" || !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	return nil
}

// ValidateName checks schema names. Names appear in URL paths, so slashes
// are not allowed.
func ValidateName(name string) error {
	if name == "" || len(name) > 128 || !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}
