package headers

import (
	"net/textproto"
	"strings"
)

// ParseHeaders converts "Key: Value" strings into a map with canonical keys.
// Entries without a colon or with an empty key are ignored.
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string, len(h))
	for _, hdr := range h {
		key, value, ok := strings.Cut(hdr, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		m[textproto.CanonicalMIMEHeaderKey(key)] = strings.TrimSpace(value)
	}
	return m
}
