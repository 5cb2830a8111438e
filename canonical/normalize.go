package canonical

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
)

var (
	// Returned (wrapped) when a value has no representation in the atproto data model:
	// floats, integers outside int64, strings that are not valid UTF-8, cycles,
	// channels, malformed $bytes or $link, etc. Float-typed Go values are refused
	// whatever they hold, so a float64(2) fails just like 2.5.
	ErrUnsupportedValue = errors.New("value not representable as DAG-CBOR")

	// Returned (wrapped) when input bytes are not valid canonical DAG-CBOR or JSON.
	ErrInvalidEncoding = errors.New("invalid encoding")
)

const (
	bytesKey = "$bytes"
	linkKey  = "$link"
)

// Normalize serializes v with encoding/json and re-reads the text into the ordered
// intermediate form: *Map for objects (keys in canonical order), []any, string, int64,
// bool, nil, []byte and cid.Cid.
func Normalize(v any) (any, error) {
	if err := checkValue(v); err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	// raw JSON passed through a Marshaler is copied as-is
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("%w: invalid UTF-8 in serialized value", ErrUnsupportedValue)
	}
	return normalizeJSON(b)
}

// NormalizeJSON is Normalize for input that is already JSON text.
func NormalizeJSON(b []byte) (any, error) {
	return normalizeJSON(b)
}

func normalizeJSON(b []byte) (any, error) {
	// the decoder would quietly substitute U+FFFD
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", ErrInvalidEncoding)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	node, err := readValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidEncoding)
	}
	return node, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return readObject(dec)
		case '[':
			return readArray(dec)
		}
		return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidEncoding, t)
	case json.Number:
		return parseInteger(t)
	case string, bool:
		return t, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected JSON token %T", ErrInvalidEncoding, tok)
	}
}

func parseInteger(n json.Number) (any, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return nil, fmt.Errorf("%w: float %s", ErrUnsupportedValue, s)
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: integer %s out of range", ErrUnsupportedValue, s)
	}
	return i, nil
}

func readArray(dec *json.Decoder) (any, error) {
	arr := []any{}
	for dec.More() {
		v, err := readValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return arr, nil
}

type entry struct {
	key   string
	value any
}

func readObject(dec *json.Decoder) (any, error) {
	var entries []entry
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string object key", ErrInvalidEncoding)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrUnsupportedValue, key)
		}
		seen[key] = true
		v, err := readValue(dec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: key, value: v})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	if len(entries) == 1 {
		switch entries[0].key {
		case bytesKey:
			return decodeBytesObject(entries[0].value)
		case linkKey:
			return decodeLinkObject(entries[0].value)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return keyLess(entries[i].key, entries[j].key)
	})
	m := NewMap()
	for _, e := range entries {
		m.Put(e.key, e.value)
	}
	return m, nil
}

func decodeBytesObject(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $bytes must be a string", ErrUnsupportedValue)
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: $bytes: %v", ErrUnsupportedValue, err)
	}
	return b, nil
}

func decodeLinkObject(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $link must be a string", ErrUnsupportedValue)
	}
	c, err := cid.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: $link: %v", ErrUnsupportedValue, err)
	}
	return c, nil
}
