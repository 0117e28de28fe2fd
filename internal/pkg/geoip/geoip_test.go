package geoip

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverWithoutDatabase(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		r := Open("", nil)
		assert.False(t, r.Enabled())
		assert.Equal(t, Location{}, r.Lookup("8.8.8.8"))
		assert.NoError(t, r.Close())
	})

	t.Run("missing file", func(t *testing.T) {
		r := Open(filepath.Join(t.TempDir(), "missing.mmdb"), nil)
		assert.False(t, r.Enabled())
		assert.Equal(t, Location{}, r.Lookup("8.8.8.8"))
	})

	t.Run("nil resolver", func(t *testing.T) {
		var r *Resolver
		assert.False(t, r.Enabled())
		assert.Equal(t, Location{}, r.Lookup("8.8.8.8"))
	})
}

func TestLookupSkipsNonPublicAddresses(t *testing.T) {
	r := Open("", nil)
	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "10.1.2.3", "192.168.0.1", "::1", "0.0.0.0"} {
		assert.Equal(t, Location{}, r.Lookup(ip), ip)
	}
}

func TestDefaultResolver(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	r := Open("", nil)
	SetDefault(r)
	assert.Same(t, r, Default())
}
