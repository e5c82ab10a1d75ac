package directory

import (
	"strconv"
	"strings"
	"time"
)

// CookieOptions controls the attributes written alongside the directory.
type CookieOptions struct {
	Path   string
	MaxAge time.Duration
	Secure bool
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	return o
}

// SetCookieHeaders returns the Set-Cookie values that store d on the client.
//
// The directive is written by hand: net/http quotes any cookie value holding a
// comma, which would change the wire format.
func (d Directory) SetCookieHeaders(opts CookieOptions) []string {
	opts = opts.normalize()

	var b strings.Builder
	b.WriteString(CookieName)
	b.WriteString("=")
	b.WriteString(d.Encode())
	b.WriteString("; Path=")
	b.WriteString(opts.Path)
	if opts.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(int64(opts.MaxAge/time.Second), 10))
	}
	writeFlags(&b, opts)

	return []string{b.String()}
}

// ClearCookieHeaders returns an already expired directive that removes the
// directory cookie.
func ClearCookieHeaders(opts CookieOptions) []string {
	opts = opts.normalize()

	var b strings.Builder
	b.WriteString(CookieName)
	b.WriteString("=; Path=")
	b.WriteString(opts.Path)
	b.WriteString("; Expires=Thu, 01 Jan 1970 00:00:00 GMT; Max-Age=0")
	writeFlags(&b, opts)

	return []string{b.String()}
}

// Headers returns set-cookie headers for d, or clear headers once d is empty.
func (d Directory) Headers(opts CookieOptions) []string {
	if d.Len() == 0 {
		return ClearCookieHeaders(opts)
	}
	return d.SetCookieHeaders(opts)
}

func writeFlags(b *strings.Builder, opts CookieOptions) {
	b.WriteString("; HttpOnly; SameSite=Strict")
	if opts.Secure {
		b.WriteString("; Secure")
	}
}
