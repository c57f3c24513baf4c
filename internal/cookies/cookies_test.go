package cookies

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNetscapeFile(t *testing.T) {
	raw := "# Netscape HTTP Cookie File\n" +
		".google.com\tTRUE\t/\tTRUE\t1999999999\tSID\tabc123\n" +
		"#HttpOnly_.google.com\tTRUE\t/\tTRUE\t0\tHSID\tdef456\n" +
		"\n" +
		"malformed\tline\n"

	cookies := ParseNetscapeFile(raw)
	require.Len(t, cookies, 2)
	require.Equal(t, "SID", cookies[0].Name)
	require.Equal(t, "abc123", cookies[0].Value)
	require.True(t, cookies[0].Secure)
	require.False(t, cookies[0].HTTPOnly)
	require.Equal(t, "HSID", cookies[1].Name)
	require.True(t, cookies[1].HTTPOnly)
}

func TestParseCookieString(t *testing.T) {
	cookies := ParseCookieString("SID=abc123; HSID=def456; ", "")
	require.Len(t, cookies, 2)
	require.Equal(t, ".google.com", cookies[0].Domain)
	require.Equal(t, "SID", cookies[0].Name)
	require.Equal(t, "abc123", cookies[0].Value)
	require.True(t, cookies[0].Secure)
}

func TestParseCookieStringIgnoresMalformedSegments(t *testing.T) {
	cookies := ParseCookieString("noequalssign; =emptyname; ; OK=1", "")
	require.Len(t, cookies, 1)
	require.Equal(t, "OK", cookies[0].Name)
}
