package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n, err := NewAccountNumber()
		require.NoError(t, err)
		assert.True(t, ValidAccountNumber(n), "generated %q", n)
		seen[n] = true
	}
	// 100 draws from 900k values should essentially never all collide.
	assert.Greater(t, len(seen), 90)
}

func TestValidAccountNumber(t *testing.T) {
	assert.True(t, ValidAccountNumber("ACC123456"))
	assert.False(t, ValidAccountNumber("ACC12345"))
	assert.False(t, ValidAccountNumber("ACC1234567"))
	assert.False(t, ValidAccountNumber("ACD123456"))
	assert.False(t, ValidAccountNumber("acc123456"))
	assert.False(t, ValidAccountNumber(""))
}
