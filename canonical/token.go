package canonical

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// URLSafeToken serializes v as JSON and base64-encodes it (standard alphabet) with the
// trailing '=' padding removed. This form is for compact identifiers, not for hashing.
func URLSafeToken(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return strings.TrimRight(base64.StdEncoding.EncodeToString(b), "="), nil
}

// ParseURLSafeToken reverses URLSafeToken, decoding the JSON into v.
func ParseURLSafeToken(tok string, v any) error {
	b, err := base64.RawStdEncoding.DecodeString(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return nil
}
