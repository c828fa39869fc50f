// Package tenant derives tenant identifiers from inbound recipient addresses.
package tenant

import (
	"fmt"
	"strings"
)

// MaxLength is the longest identifier PostgreSQL accepts for a database name.
const MaxLength = 63

// Names that would collide with databases every server already has.
var reserved = map[string]struct{}{
	"postgres":  {},
	"template0": {},
	"template1": {},
}

// ResolutionError reports a recipient address that does not carry a usable
// tenant tag.
type ResolutionError struct {
	Address string
	Reason  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve tenant from %q: %s", e.Address, e.Reason)
}

// Resolve extracts the tag between the first '+' and the following '@' of a
// "local+tag@domain" address and returns it sanitized.
func Resolve(address string) (string, error) {
	plus := strings.IndexByte(address, '+')
	if plus < 0 {
		return "", &ResolutionError{Address: address, Reason: "no '+' tag in address"}
	}
	rest := address[plus+1:]
	at := strings.IndexByte(rest, '@')
	if at < 0 {
		return "", &ResolutionError{Address: address, Reason: "no '@' after '+' tag"}
	}
	tag := rest[:at]
	if tag == "" {
		return "", &ResolutionError{Address: address, Reason: "empty tenant tag"}
	}

	id := Sanitize(tag)
	if len(id) > MaxLength {
		return "", &ResolutionError{Address: address, Reason: fmt.Sprintf("tenant tag longer than %d characters", MaxLength)}
	}
	if _, ok := reserved[id]; ok {
		return "", &ResolutionError{Address: address, Reason: fmt.Sprintf("tenant tag %q is reserved", id)}
	}
	return id, nil
}

// Sanitize lowercases s and replaces every character outside [a-z0-9] with
// '_'. Runs of separators are kept as they are.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
