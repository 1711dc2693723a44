package denylist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetCaseInsensitive(t *testing.T) {
	s := NewSet("0xABCDEF1234567890abcdef1234567890ABCDEF12")

	assert.True(t, s.Contains("0xabcdef1234567890abcdef1234567890abcdef12"))
	assert.True(t, s.Contains("0xABCDEF1234567890ABCDEF1234567890ABCDEF12"))
	assert.False(t, s.Contains("0x0000000000000000000000000000000000000000"))
}

func TestSetExactMatchOnly(t *testing.T) {
	s := NewSet("phishing-site.com")

	assert.True(t, s.Contains("PHISHING-SITE.COM"))
	// No wildcard or substring semantics.
	assert.False(t, s.Contains("sub.phishing-site.com"))
	assert.False(t, s.Contains("phishing-site.com.evil.net"))
}

func TestSetAddRemove(t *testing.T) {
	s := NewSet()
	assert.Equal(t, 0, s.Len())

	s.Add("bad.example", "  worse.example  ", "")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("worse.example"))

	s.Remove("BAD.example")
	assert.False(t, s.Contains("bad.example"))
	assert.Equal(t, 1, s.Len())
}

func TestSetConcurrentAccess(t *testing.T) {
	s := NewSet()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Add("addr-1", "addr-2")
		}()
		go func() {
			defer wg.Done()
			s.Contains("addr-1")
		}()
	}
	wg.Wait()
	assert.True(t, s.Contains("addr-1"))
}
