package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIP(t *testing.T) {
	h1 := HashIP("salt", "203.0.113.5")
	h2 := HashIP("salt", "203.0.113.5")
	h3 := HashIP("other-salt", "203.0.113.5")

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestHashIPSentinel(t *testing.T) {
	assert.Equal(t, sentinelHash, HashIP("salt", ""))
	assert.Equal(t, sentinelHash, HashIP("salt", "not-an-ip"))
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, NewID())
}

func TestTruncateUA(t *testing.T) {
	assert.Equal(t, "Mozilla/5.0", TruncateUA("Mozilla/5.0"))

	withControl := "Mozilla\x00/5.0\x01test"
	assert.Equal(t, "Mozilla/5.0test", TruncateUA(withControl))

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, TruncateUA(string(long)), 500)
}
