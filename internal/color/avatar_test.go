package color

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForUser_Deterministic(t *testing.T) {
	first := ForUser("user-V1StGXR8_Z5jdHi6B-myT")
	second := ForUser("user-V1StGXR8_Z5jdHi6B-myT")
	assert.Equal(t, first, second)
}

func TestForUser_HexFormat(t *testing.T) {
	hex := regexp.MustCompile(`^#[0-9A-F]{6}$`)
	for _, id := range []string{"user-a", "user-b", "user-c", ""} {
		assert.Regexp(t, hex, ForUser(id))
	}
}

func TestForUser_VariesByUser(t *testing.T) {
	assert.NotEqual(t, ForUser("user-aaaa"), ForUser("user-zzzz"))
}
