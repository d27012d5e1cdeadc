package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
	}{
		{"", "", ""},
		{"Anna", "Anna", ""},
		{"Anna Schmidt", "Anna", "Schmidt"},
		{"Jean Claude van Damme", "Jean", "Claude van Damme"},
		{"  Anna   Schmidt  ", "Anna", "Schmidt"},
	}
	for _, tt := range tests {
		first, last := splitName(tt.name)
		assert.Equal(t, tt.first, first, "first of %q", tt.name)
		assert.Equal(t, tt.last, last, "last of %q", tt.name)
	}
}

func TestUsableCompany(t *testing.T) {
	assert.True(t, usableCompany("Acme GmbH"))
	assert.True(t, usableCompany("X1"))

	assert.False(t, usableCompany(""))
	assert.False(t, usableCompany("A"))
	assert.False(t, usableCompany("info@acme.de"))
	assert.False(t, usableCompany("Acme | Home | Kontakt"))
}

func TestStrPtr(t *testing.T) {
	assert.Nil(t, strPtr(""))
	assert.Nil(t, strPtr("   "))
	if p := strPtr(" Berlin "); assert.NotNil(t, p) {
		assert.Equal(t, "Berlin", *p)
	}
}
