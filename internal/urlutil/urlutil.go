// Package urlutil provides URL normalization and hashing for the crawl
// pipeline. URLs are normalized before hashing so that the same URL expressed
// differently produces the same dedup key.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
)

// Normalize applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings: scheme and host are lowercased,
// the path is percent-encoded preserving "/" and "%", query string and
// fragment are dropped, and a trailing slash is removed unless the path is
// exactly "/". The transformation is idempotent.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	path := quotePath(parsed.EscapedPath())
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)

	return scheme + "://" + host + path, nil
}

// Domain returns the host component of a URL, lowercased. URLs without a
// scheme have no host and yield an empty string.
func Domain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// Absolute resolves a relative reference against a root. References that are
// already absolute are returned unchanged. The root gains an https scheme if
// it has none, and the two parts are joined with exactly one "/". Dot-segments
// are not resolved.
func Absolute(root, relative string) string {
	if strings.HasPrefix(relative, "http://") || strings.HasPrefix(relative, "https://") {
		return relative
	}

	if !strings.HasPrefix(root, "http://") && !strings.HasPrefix(root, "https://") {
		root = "https://" + root
	}
	root = strings.TrimSuffix(root, "/")

	return root + "/" + strings.TrimPrefix(relative, "/")
}

// Hash returns the SHA-256 hex digest of a string. The returned string is
// always 64 lowercase hex characters.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

const upperhex = "0123456789ABCDEF"

// quotePath percent-encodes a path keeping unreserved characters, "/" and "%"
// as-is. Keeping "%" makes the encoding idempotent: an already-encoded path
// passes through unchanged.
func quotePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))

	for i := 0; i < len(p); i++ {
		c := p[i]
		if isUnreserved(c) || c == '/' || c == '%' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}

	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
