package orcid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want error
	}{
		{"valid", "0000-0001-8228-7153", nil},
		{"valid sandbox sample", "0000-0002-1825-0097", nil},
		{"valid with X check digit", "0000-0000-0000-001X", nil},
		{"wrong check digit", "0000-0001-8228-7154", ErrInvalidChecksum},
		{"x where digit expected", "0000-0001-8228-715X", ErrInvalidChecksum},
		{"missing dashes", "0000000182287153", ErrInvalidIDFormat},
		{"too short", "0000-0001-8228", ErrInvalidIDFormat},
		{"letters", "0000-0001-8228-71a3", ErrInvalidIDFormat},
		{"empty", "", ErrInvalidIDFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestIDFromURL(t *testing.T) {
	id, err := IDFromURL("https://orcid.org/0000-0001-8228-7153")
	require.NoError(t, err)
	assert.Equal(t, "0000-0001-8228-7153", id)

	id, err = IDFromURL("0000-0001-8228-7153")
	require.NoError(t, err)
	assert.Equal(t, "0000-0001-8228-7153", id)

	_, err = IDFromURL("https://orcid.org/0000-0001-8228-7154")
	assert.ErrorIs(t, err, ErrInvalidChecksum)

	_, err = IDFromURL("https://orcid.org/")
	assert.ErrorIs(t, err, ErrInvalidIDFormat)
}
