package logging

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Public ledger fields are safe to log verbatim; everything else (signatures,
// key material, passphrases) is masked.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"operation": {},
	"code":      {},
	"account":   {},
	"recipient": {},
	"amount":    {},
	"nonce":     {},
	"deadline":  {},
	"seq":       {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the log keys emitted without
// redaction.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. Empty values pass through unchanged.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskBytes logs binary secrets such as signatures by length and a short
// prefix only, enough to correlate a submission without replaying it.
func MaskBytes(key string, value []byte) slog.Attr {
	if len(value) == 0 {
		return slog.String(key, "")
	}
	if IsAllowlisted(key) {
		return slog.String(key, hex.EncodeToString(value))
	}
	n := 4
	if len(value) < n {
		n = len(value)
	}
	return slog.String(key, fmt.Sprintf("%s…(%d bytes)", hex.EncodeToString(value[:n]), len(value)))
}
