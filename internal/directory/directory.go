// Package directory holds the per-browser map of signed in accounts to their
// session tokens, carried in a single cookie.
package directory

import (
	"net/http"
	"slices"
	"strings"
)

// CookieName is the cookie carrying the encoded directory.
const CookieName = "Sessions"

const (
	entrySeparator = ","
	pairSeparator  = ":"
)

// Directory maps wire account identifiers to session tokens. It is built per
// request and never shared.
type Directory map[string]string

// Decode parses a cookie value. Entries missing a key or a token are dropped,
// so a corrupted cookie decodes to fewer (or no) sessions rather than an error.
func Decode(value string) Directory {
	d := Directory{}
	for entry := range strings.SplitSeq(value, entrySeparator) {
		accountID, token, ok := strings.Cut(strings.TrimSpace(entry), pairSeparator)
		if !ok {
			continue
		}
		d.Set(strings.TrimSpace(accountID), strings.TrimSpace(token))
	}
	return d
}

// FromRequest decodes the directory cookie of r. A missing cookie yields an
// empty directory.
func FromRequest(r *http.Request) Directory {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Directory{}
	}
	return Decode(cookie.Value)
}

// FromHeader decodes the directory cookie out of a raw header set.
func FromHeader(h http.Header) Directory {
	return FromRequest(&http.Request{Header: h})
}

// Encode is the inverse of Decode. Entries are written in account order so the
// output is stable.
func (d Directory) Encode() string {
	var b strings.Builder
	for i, accountID := range d.AccountIDs() {
		if i > 0 {
			b.WriteString(entrySeparator)
		}
		b.WriteString(accountID)
		b.WriteString(pairSeparator)
		b.WriteString(d[accountID])
	}
	return b.String()
}

// Set upserts the token for accountID. Empty keys or tokens are ignored.
func (d Directory) Set(accountID, token string) {
	if accountID == "" || token == "" {
		return
	}
	d[accountID] = token
}

// Delete removes accountID, doing nothing if it is absent.
func (d Directory) Delete(accountID string) {
	delete(d, accountID)
}

// Token returns the session token stored for accountID.
func (d Directory) Token(accountID string) (string, bool) {
	token, ok := d[accountID]
	return token, ok
}

// Has reports whether accountID is present.
func (d Directory) Has(accountID string) bool {
	_, ok := d[accountID]
	return ok
}

func (d Directory) Len() int {
	return len(d)
}

// AccountIDs returns the accounts in sorted order.
func (d Directory) AccountIDs() []string {
	ids := make([]string, 0, len(d))
	for accountID := range d {
		ids = append(ids, accountID)
	}
	slices.Sort(ids)
	return ids
}

// Tokens returns every token, ordered by account.
func (d Directory) Tokens() []string {
	tokens := make([]string, 0, len(d))
	for _, accountID := range d.AccountIDs() {
		tokens = append(tokens, d[accountID])
	}
	return tokens
}

// Filter returns a copy holding only the entries whose account is in allowed.
func (d Directory) Filter(allowed []string) Directory {
	out := Directory{}
	for _, accountID := range allowed {
		if token, ok := d[accountID]; ok {
			out[accountID] = token
		}
	}
	return out
}

// Clone returns an independent copy of d.
func (d Directory) Clone() Directory {
	out := make(Directory, len(d))
	for accountID, token := range d {
		out[accountID] = token
	}
	return out
}
