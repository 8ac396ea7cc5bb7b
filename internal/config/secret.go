package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret is a credential that never prints its value.
// Use Reveal at the single point where the raw value is sent upstream.
type Secret string

// Reveal returns the raw value.
func (s Secret) Reveal() string { return string(s) }

// IsZero reports whether the secret is unset.
func (s Secret) IsZero() bool { return s == "" }

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string { return s.String() }

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalText covers encoders that prefer text (zerolog, yaml).
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
