package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertCookies(t *testing.T) {
	in := []*network.Cookie{
		{Name: "session-id", Value: "abc", Domain: ".amazon.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1893456000},
		{Name: "csm-hit", Value: "x", Domain: "business.amazon.com", Path: "/", Session: true, Expires: -1},
	}

	out := convertCookies(in)
	require.Len(t, out, 2)

	assert.Equal(t, "session-id", out[0].Name)
	assert.Equal(t, ".amazon.com", out[0].Domain)
	assert.True(t, out[0].Secure)
	assert.True(t, out[0].HttpOnly)
	assert.True(t, out[0].Expires.Equal(time.Unix(1893456000, 0)))

	assert.True(t, out[1].Expires.IsZero())
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"a[href*='orders']"`, jsString("a[href*='orders']"))
	assert.Equal(t, `"button[aria-label=\"more\"]"`, jsString(`button[aria-label="more"]`))
}

func TestCallTimeoutIsAlwaysBounded(t *testing.T) {
	assert.Equal(t, defaultCallTimeout, (&Session{}).callTimeout())
	assert.Equal(t, 5*time.Second, (&Session{pageLoad: 5 * time.Second}).callTimeout())
}
