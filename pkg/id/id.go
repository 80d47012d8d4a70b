package id

import (
	"strings"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

// UUID generates a new UUID string.
func UUID() string {
	return uuid.NewString()
}

// UUIDWithoutDashes generates a new UUID with the dashes stripped.
func UUIDWithoutDashes() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Short generates a short url-safe identifier.
func Short() string {
	s, err := shortid.Generate()
	if err != nil {
		return UUIDWithoutDashes()[:9]
	}
	return s
}
