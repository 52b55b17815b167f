package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.NoError(t, ValidateUsername("alice 99"))
	assert.NoError(t, ValidateUsername("al_ice"))
	assert.NoError(t, ValidateUsername("abc"))
	assert.NoError(t, ValidateUsername("sixteen chars ok"))

	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("seventeen chars!!"))
	assert.Error(t, ValidateUsername("al!ce"))
	assert.Error(t, ValidateUsername("alice@home"))
	assert.Error(t, ValidateUsername(""))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.NoError(t, ValidateEmail("a.b+c@sub.domain.co"))

	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("alice"))
	assert.Error(t, ValidateEmail("alice@"))
	assert.Error(t, ValidateEmail("@example.com"))
	assert.Error(t, ValidateEmail("alice@example"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("secret"))
	assert.NoError(t, ValidatePassword("secret123"))

	assert.Error(t, ValidatePassword(""))
	assert.Error(t, ValidatePassword("12345"))
}
