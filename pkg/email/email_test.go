package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGreetingName(t *testing.T) {
	assert.Equal(t, "Jane", GreetingName("jane smith", "x@y.com"))
	assert.Equal(t, "John", GreetingName("", "john.doe@example.com"))
	assert.Equal(t, "Mary", GreetingName("  ", "mary_ann+lets@example.com"))
	assert.Equal(t, "Landlord", GreetingName("", "123@example.com"))
	assert.Equal(t, "Landlord", GreetingName("", ""))
}

func TestIsPlausibleAddress(t *testing.T) {
	assert.True(t, IsPlausibleAddress("jane@example.com"))
	assert.False(t, IsPlausibleAddress("jane@localhost"))
	assert.False(t, IsPlausibleAddress("@example.com"))
	assert.False(t, IsPlausibleAddress("jane@example.com\r\nBcc: x@y.z"))
	assert.False(t, IsPlausibleAddress(""))
}
