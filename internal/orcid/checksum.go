package orcid

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidIDFormat reports an iD that is not 4x4 digit groups.
	ErrInvalidIDFormat = errors.New("invalid ORCID iD format")
	// ErrInvalidChecksum reports a well-formed iD with a wrong check digit.
	ErrInvalidChecksum = errors.New("invalid ORCID iD checksum")
)

var idPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// ValidateID checks the 16-character iD format and its ISO 7064 mod 11-2
// check digit.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	digits := strings.ReplaceAll(id, "-", "")

	total := 0
	for _, r := range digits[:15] {
		total = (total + int(r-'0')) * 2
	}
	remainder := total % 11
	result := (12 - remainder) % 11

	check := digits[15]
	if result == 10 {
		if check != 'X' {
			return ErrInvalidChecksum
		}
		return nil
	}
	if int(check-'0') != result {
		return ErrInvalidChecksum
	}
	return nil
}

// IDFromURL extracts and validates the iD from its URL form
// (e.g. https://orcid.org/0000-0001-8228-7153).
func IDFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidIDFormat
	}
	id := raw
	if strings.Contains(raw, "/") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", ErrInvalidIDFormat
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		id = segments[len(segments)-1]
	}
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}
