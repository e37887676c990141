package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idFor(b byte) [32]byte {
	var id [32]byte
	id[0] = b
	return id
}

func TestRegisterIfNewAcceptsFirstRegistration(t *testing.T) {
	c := NewCache()
	assert.True(t, c.RegisterIfNew(idFor(1)))
}

func TestRegisterIfNewRejectsDuplicateWithinTTL(t *testing.T) {
	c := NewCache()
	require.True(t, c.RegisterIfNew(idFor(2)))
	assert.False(t, c.RegisterIfNew(idFor(2)))
}

func TestRegisterIfNewAcceptsSameIDAfterTTLExpires(t *testing.T) {
	c := NewCache()
	start := time.Now()
	c.now = func() time.Time { return start }
	require.True(t, c.RegisterIfNew(idFor(3)))

	c.now = func() time.Time { return start.Add(TTL + time.Second) }
	assert.True(t, c.RegisterIfNew(idFor(3)))
}

func TestRegisterIfNewPrunesExpiredEntries(t *testing.T) {
	c := NewCache()
	start := time.Now()
	c.now = func() time.Time { return start }
	require.True(t, c.RegisterIfNew(idFor(4)))
	assert.Equal(t, 1, c.Len())

	later := start.Add(TTL + 2*time.Second)
	c.now = func() time.Time { return later }
	require.True(t, c.RegisterIfNew(idFor(5)))

	assert.Equal(t, 1, c.Len())
}

func TestDistinctIDsDoNotCollide(t *testing.T) {
	c := NewCache()
	assert.True(t, c.RegisterIfNew(idFor(6)))
	assert.True(t, c.RegisterIfNew(idFor(7)))
	assert.False(t, c.RegisterIfNew(idFor(6)))
}
