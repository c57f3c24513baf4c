// Package cookies parses the two cookie import formats the HTTP boundary
// accepts: Netscape cookie files and single-line paste imports, grounded on
// cookies.py's parse_netscape_cookie_file/parse_cookie_string.
package cookies

import (
	"strconv"
	"strings"

	"github.com/evalgo/gphotoctl/internal/model"
)

// ParseNetscapeFile parses the tab-separated Netscape cookie file format:
// domain, include_subdomains, path, secure, expiry, name, value. Lines
// prefixed with "#HttpOnly_" are HttpOnly cookies with the prefix stripped;
// other "#"-led lines and blank lines are skipped.
func ParseNetscapeFile(raw string) []model.Cookie {
	var out []model.Cookie
	for _, line := range strings.Split(raw, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		httpOnly := false
		if rest, ok := strings.CutPrefix(stripped, "#HttpOnly_"); ok {
			stripped = rest
			httpOnly = true
		} else if strings.HasPrefix(stripped, "#") {
			continue
		}

		parts := strings.Split(stripped, "\t")
		if len(parts) != 7 {
			continue
		}
		domain, _, path, secure, expiry, name, value := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6]
		if name == "" {
			continue
		}

		expiresAt, err := strconv.ParseInt(expiry, 10, 64)
		if err != nil {
			expiresAt = 0
		}

		out = append(out, model.Cookie{
			Domain:   domain,
			Path:     path,
			Name:     name,
			Value:    value,
			Expiry:   expiresAt,
			Secure:   strings.EqualFold(secure, "TRUE"),
			HTTPOnly: httpOnly,
		})
	}
	return out
}

// ParseCookieString parses the single-line semicolon-separated paste-import
// format ("name=value; name=value"), the format a browser devtools "copy as
// cookie header" action produces.
func ParseCookieString(raw, domain string) []model.Cookie {
	if domain == "" {
		domain = ".google.com"
	}
	var out []model.Cookie
	for _, part := range strings.Split(raw, ";") {
		segment := strings.TrimSpace(part)
		if segment == "" || !strings.Contains(segment, "=") {
			continue
		}
		name, value, _ := strings.Cut(segment, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		out = append(out, model.Cookie{
			Domain: domain,
			Path:   "/",
			Name:   name,
			Value:  value,
			Secure: true,
		})
	}
	return out
}
