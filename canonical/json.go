package canonical

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
)

// ToJSON renders an intermediate node as atproto JSON: byte strings as {"$bytes": ...},
// links as {"$link": ...}, maps in stored order.
func ToJSON(node any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, node any) error {
	switch v := node.(type) {
	case string:
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: invalid UTF-8 in string", ErrUnsupportedValue)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
	case nil, bool, int64:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
	case []byte:
		return writeJSONObject(buf, bytesKey, base64.RawStdEncoding.EncodeToString(v))
	case cid.Cid:
		return writeJSONObject(buf, linkKey, v.String())
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Map:
		buf.WriteByte('{')
		var err error
		first := true
		v.Each(func(key string, value any) {
			if err != nil {
				return
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err = writeJSON(buf, key); err != nil {
				return
			}
			buf.WriteByte(':')
			err = writeJSON(buf, value)
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported intermediate type %T", ErrUnsupportedValue, node)
	}
	return nil
}

func writeJSONObject(buf *bytes.Buffer, key, value string) error {
	buf.WriteByte('{')
	if err := writeJSON(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	if err := writeJSON(buf, value); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

// Bytes marshals to the atproto {"$bytes": ...} form, so that Marshal encodes it as a
// CBOR byte string rather than a base64 text string.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{bytesKey: base64.RawStdEncoding.EncodeToString(b)})
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s, ok := obj[bytesKey]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("%w: expected a $bytes object", ErrInvalidEncoding)
	}
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: $bytes: %v", ErrInvalidEncoding, err)
	}
	*b = raw
	return nil
}

// Link is a CID that marshals to the atproto {"$link": ...} form and encodes as a
// tag 42 CBOR link.
type Link struct {
	cid.Cid
}

func (l Link) MarshalJSON() ([]byte, error) {
	if !l.Defined() {
		return nil, fmt.Errorf("undefined CID")
	}
	return json.Marshal(map[string]string{linkKey: l.String()})
}

func (l *Link) UnmarshalJSON(data []byte) error {
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s, ok := obj[linkKey]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("%w: expected a $link object", ErrInvalidEncoding)
	}
	c, err := cid.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: $link: %v", ErrInvalidEncoding, err)
	}
	l.Cid = c
	return nil
}
