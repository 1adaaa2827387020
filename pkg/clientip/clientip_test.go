package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sessionguard/sessionguard/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Run("remote addr fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:51234"
		assert.Equal(t, "203.0.113.7", clientip.GetIP(r))
	})

	t.Run("x-forwarded-for wins", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Forwarded-For", "198.51.100.5, 10.0.0.1")
		assert.Equal(t, "198.51.100.5", clientip.GetIP(r))
	})

	t.Run("skips invalid forwarded entries", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Forwarded-For", "garbage, 198.51.100.5")
		assert.Equal(t, "198.51.100.5", clientip.GetIP(r))
	})

	t.Run("x-real-ip", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Real-IP", "192.0.2.44")
		assert.Equal(t, "192.0.2.44", clientip.GetIP(r))
	})

	t.Run("ipv6", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "[2001:db8::1]:443"
		assert.Equal(t, "2001:db8::1", clientip.GetIP(r))
	})
}
