package robusthttp

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClientRetries(t *testing.T) {
	assert := assert.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(WithRetryWait(time.Millisecond, 5*time.Millisecond))
	resp, err := c.Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(int32(3), hits.Load())
}

func TestNewClientGivesUp(t *testing.T) {
	assert := assert.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithMaxRetries(1), WithRetryWait(time.Millisecond, time.Millisecond))
	_, err := c.Get(srv.URL)
	assert.Error(err)
	assert.Equal(int32(2), hits.Load())
}

func TestIsPublicAddr(t *testing.T) {
	assert := assert.New(t)

	for _, s := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "169.254.169.254", "::1", "fe80::1", "::ffff:10.0.0.1"} {
		assert.False(IsPublicAddr(netip.MustParseAddr(s)), s)
	}
	for _, s := range []string{"8.8.8.8", "1.1.1.1", "2606:4700::1111"} {
		assert.True(IsPublicAddr(netip.MustParseAddr(s)), s)
	}
}

func TestPublicOnlyRefusesLoopback(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(WithPublicOnly(), WithMaxRetries(0))
	_, err := c.Get(srv.URL)
	assert.Error(err)
}
